package dialog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dialog mutations.
type Metrics struct {
	MutationsTotal *prometheus.CounterVec // by resource, op, outcome
	RollbacksTotal *prometheus.CounterVec // by resource
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_dialog_mutations_total",
			Help: "Status updates and deletions issued from record dialogs",
		}, []string{"resource", "op", "outcome"}),
		RollbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_dialog_rollbacks_total",
			Help: "Optimistic status updates rolled back after a failed write",
		}, []string{"resource"}),
	}
}

func (m *Metrics) mutation(resource, op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.MutationsTotal.WithLabelValues(resource, op, outcome).Inc()
}

func (m *Metrics) rollback(resource string) {
	if m == nil {
		return
	}
	m.RollbacksTotal.WithLabelValues(resource).Inc()
}
