package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments backend calls.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec // by resource, op, outcome
	CircuitOpened   prometheus.Counter
	CircuitRejected prometheus.Counter
}

// NewMetrics registers the gateway metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trash4cash_backend_request_duration_seconds",
			Help:    "Duration of backend API calls by resource, operation and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource", "op", "outcome"}),
		CircuitOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "trash4cash_backend_circuit_opened_total",
			Help: "Number of times the backend circuit breaker opened",
		}),
		CircuitRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "trash4cash_backend_circuit_rejected_total",
			Help: "Backend calls rejected while the circuit was open",
		}),
	}
}

func (m *Metrics) observe(resource, op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(resource, op, outcome).Observe(seconds)
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.CircuitOpened.Inc()
}

func (m *Metrics) rejected() {
	if m == nil {
		return
	}
	m.CircuitRejected.Inc()
}
