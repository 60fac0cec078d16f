package blockproducer

import (
	"context"
	"sync"
	"time"

	"github.com/thebeyondr/sekiva/lib/logger"
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/config"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"

	"github.com/chebyrash/promise"
	"github.com/robfig/cron/v3"
)

type Chain interface {
	ProduceBlock(ctx context.Context, at time.Time) (stateEngine.BlockSummary, error)
}

// Seals a block on every tick of the configured schedule. A tick that
// arrives while the previous block is still being produced is skipped.
type BlockProducer struct {
	conf  *config.Config[ProducerConfig]
	chain Chain
	log   logger.Logger

	cron     *cron.Cron
	stop     chan struct{}
	stopOnce sync.Once

	// serializes scheduled and manual production
	mu sync.Mutex
}

var _ a.Plugin = &BlockProducer{}

func New(conf *config.Config[ProducerConfig], chain Chain, log logger.Logger) *BlockProducer {
	if log == nil {
		log = logger.Nop{}
	}
	return &BlockProducer{
		conf:  conf,
		chain: chain,
		log:   log,
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		stop:  make(chan struct{}),
	}
}

func (bp *BlockProducer) Init() error {
	_, err := cron.ParseStandard(bp.conf.Get().Schedule)
	return err
}

// Produces one block at the current time
func (bp *BlockProducer) Produce(ctx context.Context) (stateEngine.BlockSummary, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	summary, err := bp.chain.ProduceBlock(ctx, time.Now())
	if err != nil {
		bp.log.Error("block production failed", err)
		return summary, err
	}
	if summary.Processed > 0 || summary.Saved > 0 {
		bp.log.Info("sealed block", summary.Height, "jobs", summary.Processed, "contracts saved", summary.Saved)
	} else {
		bp.log.Debug("sealed empty block", summary.Height)
	}
	return summary, nil
}

func (bp *BlockProducer) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-bp.stop
			cancel()
		}()

		_, err := bp.cron.AddFunc(bp.conf.Get().Schedule, func() {
			select {
			case <-bp.stop:
				return
			default:
				bp.Produce(ctx)
			}
		})
		if err != nil {
			cancel()
			reject(err)
			return
		}
		bp.cron.Start()
		resolve(nil)
	})
}

// Waits for a block in progress to finish
func (bp *BlockProducer) Stop() error {
	bp.stopOnce.Do(func() {
		close(bp.stop)
	})
	<-bp.cron.Stop().Done()
	return nil
}
