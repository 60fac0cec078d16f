package main

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/api"
	blockproducer "github.com/thebeyondr/sekiva/modules/block-producer"
	"github.com/thebeyondr/sekiva/modules/db"
	"github.com/thebeyondr/sekiva/modules/zk"
)

func main() {
	args, err := ParseArgs()
	if err != nil {
		fmt.Println("Error parsing arguments:", err)
		os.Exit(1)
	}

	for n := 1; n <= args.nodes; n++ {
		nodeDir := path.Join(args.dataDir, "data-"+strconv.Itoa(n))

		dbConf := db.NewDbConfig(nodeDir)
		apiConf := api.NewApiConfig(nodeDir)
		producerConf := blockproducer.NewProducerConfig(nodeDir)
		zkConf := zk.NewEngineConfig(nodeDir)

		if err := aggregate.New([]aggregate.Plugin{dbConf, apiConf, producerConf, zkConf}).Init(); err != nil {
			fmt.Println("failed to load config of node", n, err)
			os.Exit(1)
		}

		err := dbConf.Update(func(dc *db.DbConfig) {
			dc.DbURI = args.dbUrl
			dc.DbName = args.dbPrefix + "-" + strconv.Itoa(n)
		})
		if err == nil {
			err = apiConf.Update(func(ac *api.ApiConfig) {
				ac.Port = args.apiPort - 1 + n
			})
		}
		if err == nil {
			err = producerConf.Update(func(pc *blockproducer.ProducerConfig) {
				pc.Schedule = args.schedule
			})
		}
		if err == nil {
			err = zkConf.Update(func(zc *zk.EngineConfig) {
				zc.Nodes = args.zkNodes
			})
		}
		if err != nil {
			fmt.Println("failed to write config of node", n, err)
			os.Exit(1)
		}
		fmt.Println("node", n, "configured in", nodeDir)
	}

	if args.demo {
		if err := runDemo(os.Stdout); err != nil {
			fmt.Println("demo failed:", err)
			os.Exit(1)
		}
	}
}
