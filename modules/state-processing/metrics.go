package stateEngine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Invocations *prometheus.CounterVec
	Deployments *prometheus.CounterVec
	Callbacks   prometheus.Counter
	QueueDepth  prometheus.Gauge
	Blocks      prometheus.Counter
}

// A nil registry gives working but unregistered collectors
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sekiva_invocations_total",
			Help: "Contract invocations by kind and result",
		}, []string{"kind", "result"}),
		Deployments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sekiva_deployments_total",
			Help: "Contracts deployed by implementation",
		}, []string{"contract"}),
		Callbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sekiva_callbacks_total",
			Help: "Event group callbacks dispatched",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sekiva_dispatch_queue_depth",
			Help: "Jobs waiting in the dispatch queue",
		}),
		Blocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sekiva_blocks_total",
			Help: "Blocks produced",
		}),
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
