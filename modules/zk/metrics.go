package zk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	InputsAccepted  prometheus.Counter
	InputsRejected  prometheus.Counter
	Computations    *prometheus.CounterVec
	OpenedVariables prometheus.Counter
}

// A nil registry gives working but unregistered counters
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		InputsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sekiva_zk_inputs_accepted_total",
			Help: "Secret inputs shared to the engine nodes",
		}),
		InputsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sekiva_zk_inputs_rejected_total",
			Help: "Secret inputs refused or deleted",
		}),
		Computations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sekiva_zk_computations_total",
			Help: "Computations run by outcome",
		}, []string{"outcome"}),
		OpenedVariables: factory.NewCounter(prometheus.CounterOpts{
			Name: "sekiva_zk_opened_variables_total",
			Help: "Secret variables declassified",
		}),
	}
}
