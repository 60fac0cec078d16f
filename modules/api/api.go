package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/thebeyondr/sekiva/lib/logger"
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/config"
	contract_session "github.com/thebeyondr/sekiva/modules/contract/session"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/contract_states"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"

	"github.com/chebyrash/promise"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

// What the api reads from and submits to
type Node interface {
	Contract(address common.Address) (contract_session.ContractRecord, bool)
	Addresses() []common.Address
	Height() uint64
	BlockTime() int64
	NextNonce(sender common.Address) uint64
	Submit(ctx context.Context, tx stateEngine.Transaction) stateEngine.TxResult
	SubmitSecretInput(ctx context.Context, sender, contract common.Address, sn common.Shortname, publicArgs []byte, value int64) stateEngine.TxResult
}

var _ Node = &stateEngine.StateEngine{}

type Server struct {
	conf   *config.Config[ApiConfig]
	node   Node
	states contract_states.ContractStates
	events event_log.EventLog
	log    logger.Logger

	handler http.Handler
	server  *http.Server
}

var _ a.Plugin = &Server{}

// states and events may be nil; their endpoints then answer 503
func New(
	conf *config.Config[ApiConfig],
	node Node,
	states contract_states.ContractStates,
	events event_log.EventLog,
	log logger.Logger,
) *Server {
	if log == nil {
		log = logger.Nop{}
	}
	return &Server{
		conf:   conf,
		node:   node,
		states: states,
		events: events,
		log:    log,
	}
}

func (s *Server) Init() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /contracts", s.handleContracts)
	mux.HandleFunc("GET /contracts/{address}", s.handleContract)
	mux.HandleFunc("GET /contracts/{address}/events", s.handleEvents)
	mux.HandleFunc("GET /contracts/{address}/history", s.handleHistory)
	mux.HandleFunc("GET /ballots/{address}", s.handleBallot)
	mux.HandleFunc("GET /accounts/{address}/nonce", s.handleNonce)
	mux.HandleFunc("POST /transactions", s.handleTransaction)
	mux.HandleFunc("POST /secret-inputs", s.handleSecretInput)
	mux.Handle("GET /metrics", promhttp.Handler())

	conf := s.conf.Get()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Valid after Init
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		s.log.Info("api listening on", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			reject(fmt.Errorf("api server: %w", err))
			return
		}

		resolve(nil)
	})
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}

	s.log.Info("api shut down")
	return nil
}
