package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	dataDir  string
	nodes    int
	dbUrl    string
	dbPrefix string
	apiPort  int
	schedule string
	zkNodes  int
	demo     bool
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Write the configuration of a local Sekiva devnet, optionally running a demo vote.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	dataDir := flag.String("data-dir", "data", "Parent data directory for config and storage for all nodes")
	nodes := flag.Int("nodes", 1, "Node count to initialize")
	dbUrl := flag.String("db-url", "mongodb://localhost:27017", "MongoDB connection string")
	dbPrefix := flag.String("db-prefix", "sekiva", "Database name prefix")
	apiPort := flag.Int("api-port", 8080, "API port for the first node")
	schedule := flag.String("schedule", "@every 3s", "Block production schedule")
	zkNodes := flag.Int("zk-nodes", 3, "Computation nodes holding secret shares per node (min. 2)")
	demo := flag.Bool("demo", false, "Run an in-memory voting round and print its tally")

	flag.Parse()

	if *nodes < 1 {
		return args{}, fmt.Errorf("-nodes must be at least 1, got %d", *nodes)
	}
	if *zkNodes < 2 {
		return args{}, fmt.Errorf("-zk-nodes must be at least 2, got %d", *zkNodes)
	}

	return args{
		*dataDir,
		*nodes,
		*dbUrl,
		*dbPrefix,
		*apiPort,
		*schedule,
		*zkNodes,
		*demo,
	}, nil
}
