package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thebeyondr/sekiva/lib/logger"
	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/api"
	blockproducer "github.com/thebeyondr/sekiva/modules/block-producer"
	"github.com/thebeyondr/sekiva/modules/db"
	"github.com/thebeyondr/sekiva/modules/db/sekiva"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/contract_states"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/nonces"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/chebyrash/promise"
	"github.com/ipfs/go-datastore"
	"github.com/prometheus/client_golang/prometheus"
)

// Empties the database once it is reachable. Contract state lives in memory,
// so a fresh process otherwise starts against the previous run's history.
type resetDb struct {
	db  *sekiva.SekivaDb
	log logger.Logger
}

var _ aggregate.Plugin = resetDb{}

func (r resetDb) Init() error {
	if err := r.db.Nuke(); err != nil {
		return fmt.Errorf("resetting database: %w", err)
	}
	r.log.Info("database reset")
	return nil
}

func (r resetDb) Start() *promise.Promise[any] {
	return aggregate.Resolved()
}

func (r resetDb) Stop() error {
	return nil
}

func closeNodes(log logger.Logger, nodes []datastore.Batching) {
	for i, n := range nodes {
		if err := n.Close(); err != nil {
			log.Error("closing share store", i, err)
		}
	}
}

func main() {
	args, err := ParseArgs()
	if err != nil {
		fmt.Println("Error parsing arguments:", err)
		os.Exit(1)
	}

	log := logger.New("sekiva")
	log.Verbose = args.verbose

	dbConf := db.NewDbConfig(args.dataDir)
	apiConf := api.NewApiConfig(args.dataDir)
	producerConf := blockproducer.NewProducerConfig(args.dataDir)

	mongo := db.New(dbConf)
	sekivaDb := sekiva.New(mongo, dbConf)
	contractStates := contract_states.New(sekivaDb)
	eventLog := event_log.New(sekivaDb)
	nonceDb := nonces.New(sekivaDb)

	// the share stores must exist before the engine is built
	zkConf := zk.NewEngineConfig(args.dataDir)
	if err := zkConf.Init(); err != nil {
		fmt.Println("error loading zk config:", err)
		os.Exit(1)
	}
	nodes, err := zk.FlatfsNodes(zkConf.Get().ShareDirIn(args.dataDir), zkConf.Get().Nodes)
	if err != nil {
		fmt.Println("error opening share stores:", err)
		os.Exit(1)
	}
	engine, err := zk.New(nodes, log.With("zk"), zk.NewMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		closeNodes(log, nodes)
		fmt.Println("error is", err)
		os.Exit(1)
	}

	se := stateEngine.New(
		log.With("state-engine"),
		engine,
		nil,
		contractStates,
		eventLog,
		nonceDb,
		stateEngine.NewMetrics(prometheus.DefaultRegisterer),
	)
	producer := blockproducer.New(producerConf, se, log.With("block-producer"))
	server := api.New(apiConf, se, contractStates, eventLog, log.With("api"))

	plugins := []aggregate.Plugin{
		dbConf,
		apiConf,
		producerConf,
		zkConf,
		mongo,
		sekivaDb,
		db.NewReindex(sekivaDb.DbInstance),
	}
	if args.reset {
		plugins = append(plugins, resetDb{sekivaDb, log})
	}
	plugins = append(plugins,
		contractStates,
		eventLog,
		nonceDb,
		se,
		producer,
		server,
	)

	a := aggregate.New(plugins)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		a.Shutdown()
	}()

	err = a.Run()
	closeNodes(log, nodes)
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}
}
