package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	dataDir string
	reset   bool
	verbose bool
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Sekiva Node - private group voting on secret-shared tallies.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	dataDir := flag.String("data-dir", "data", "Directory for config and secret share storage")
	reset := flag.Bool("reset", false, "Empty the database before starting")
	verbose := flag.Bool("verbose", false, "Log debug output")

	flag.Parse()

	return args{
		*dataDir,
		*reset,
		*verbose,
	}, nil
}
