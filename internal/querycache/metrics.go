package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the query cache.
type Metrics struct {
	HitsTotal          *prometheus.CounterVec // by resource
	MissesTotal        *prometheus.CounterVec // by resource
	SharedTotal        *prometheus.CounterVec // callers that joined an in-flight fetch
	InvalidationsTotal *prometheus.CounterVec // entries marked stale, by resource
	FetchFailuresTotal *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	Entries            prometheus.Gauge
}

// NewMetrics registers the cache metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_query_cache_hits_total",
			Help: "Fresh cache hits by resource",
		}, []string{"resource"}),
		MissesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_query_cache_misses_total",
			Help: "Cache misses (absent or stale) by resource",
		}, []string{"resource"}),
		SharedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_query_cache_shared_fetches_total",
			Help: "Fetches answered by an identical in-flight fetch",
		}, []string{"resource"}),
		InvalidationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_query_cache_invalidations_total",
			Help: "Entries marked stale by resource",
		}, []string{"resource"}),
		FetchFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trash4cash_query_cache_fetch_failures_total",
			Help: "Failed fetches by resource",
		}, []string{"resource"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trash4cash_query_cache_fetch_duration_seconds",
			Help:    "Duration of cache-filling fetches by resource",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resource"}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Name: "trash4cash_query_cache_entries",
			Help: "Current number of cached queries",
		}),
	}
}

func (m *Metrics) hit(resource string) {
	if m != nil {
		m.HitsTotal.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) miss(resource string) {
	if m != nil {
		m.MissesTotal.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) shared(resource string) {
	if m != nil {
		m.SharedTotal.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) invalidated(resource string, n int) {
	if m != nil && n > 0 {
		m.InvalidationsTotal.WithLabelValues(resource).Add(float64(n))
	}
}

func (m *Metrics) failed(resource string) {
	if m != nil {
		m.FetchFailuresTotal.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) observe(resource string, seconds float64) {
	if m != nil {
		m.FetchDuration.WithLabelValues(resource).Observe(seconds)
	}
}

// entries adjusts the gauge by delta. The gauge sums every workspace's cache.
func (m *Metrics) entries(delta int) {
	if m != nil && delta != 0 {
		m.Entries.Add(float64(delta))
	}
}
