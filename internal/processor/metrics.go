package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes recorded in gateway_operations_total.
const (
	OutcomeSuccess        = "success"
	OutcomeFailure        = "failure"
	OutcomeActionRequired = "action_required"
	OutcomeError          = "error"
)

// Metrics holds the processor's Prometheus collectors.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// NewMetrics registers the processor collectors with reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_operations_total",
			Help: "Payment gateway operations by gateway, transaction kind and outcome",
		}, []string{"gateway", "kind", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_operation_duration_seconds",
			Help:    "Latency of payment gateway operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway", "operation"}),
	}
}

func (m *Metrics) observe(gateway string, op Operation, kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	m.OperationsTotal.WithLabelValues(gateway, kind, outcome).Inc()
	m.OperationDuration.WithLabelValues(gateway, string(op)).Observe(seconds)
}
