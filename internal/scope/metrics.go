package scope

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks scope cache effectiveness.
type Metrics struct {
	CacheLookups *prometheus.CounterVec
	LoadLatency  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_scope_cache_lookups_total",
			Help: "Scope cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss"
		LoadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "actiongate_scope_load_duration_seconds",
			Help:    "Duration of loading a scope from the policy store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) ObserveLoad(d time.Duration) {
	if m != nil {
		m.LoadLatency.Observe(d.Seconds())
	}
}
