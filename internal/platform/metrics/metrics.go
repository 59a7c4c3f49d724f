// Package metrics holds the console's session level Prometheus metrics.
// Cache, gateway and dialog metrics live next to the code they measure.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcomes.
const (
	LoginSucceeded = "succeeded"
	LoginRejected  = "rejected"
	LoginFailed    = "failed"
)

// Metrics tracks operator sessions and their workspaces.
type Metrics struct {
	Logins           *prometheus.CounterVec
	Logouts          prometheus.Counter
	ActiveWorkspaces prometheus.Gauge
	WorkspaceAge     prometheus.Histogram
}

// New registers the session metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_logins_total",
			Help: "Operator login attempts, labeled by outcome",
		}, []string{"outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "trash4cash_logouts_total",
			Help: "Explicit operator logouts",
		}),
		ActiveWorkspaces: f.NewGauge(prometheus.GaugeOpts{
			Name: "trash4cash_active_workspaces",
			Help: "Current number of open console workspaces",
		}),
		WorkspaceAge: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trash4cash_workspace_lifetime_seconds",
			Help:    "How long a workspace stayed open before it was closed",
			Buckets: []float64{60, 300, 900, 3600, 4 * 3600, 12 * 3600, 24 * 3600},
		}),
	}
}

// IncrementLogins counts a login attempt. A nil receiver is a no-op.
func (m *Metrics) IncrementLogins(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogouts() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

func (m *Metrics) WorkspaceOpened() {
	if m == nil {
		return
	}
	m.ActiveWorkspaces.Inc()
}

// WorkspaceClosed records a closed workspace and how long it lived.
func (m *Metrics) WorkspaceClosed(lifetimeSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveWorkspaces.Dec()
	m.WorkspaceAge.Observe(lifetimeSeconds)
}
