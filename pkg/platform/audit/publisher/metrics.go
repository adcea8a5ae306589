package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit writer.
type Metrics struct {
	Persisted        *prometheus.CounterVec
	PersistFailures  prometheus.Counter
	Spilled          prometheus.Counter
	Dropped          prometheus.Counter
	RetryBufferDepth prometheus.Gauge
	BreakerState     prometheus.Gauge
	PersistLatency   prometheus.Histogram
}

// NewMetrics registers the audit writer metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Persisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_audit_events_persisted_total",
			Help: "Audit events written to the audit store by category",
		}, []string{"category"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_audit_persist_failures_total",
			Help: "Audit store writes that returned an error",
		}),
		Spilled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_audit_events_spilled_total",
			Help: "Audit events parked in the retry buffer",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_audit_events_dropped_total",
			Help: "Audit events evicted from a full retry buffer (logged locally)",
		}),
		RetryBufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "actiongate_audit_retry_buffer_depth",
			Help: "Audit events waiting for a retry",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "actiongate_audit_breaker_state",
			Help: "Audit store circuit breaker (0=closed, 1=open)",
		}),
		PersistLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "actiongate_audit_persist_duration_seconds",
			Help:    "Latency of audit store writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) incPersisted(category string, seconds float64) {
	if m != nil {
		m.Persisted.WithLabelValues(category).Inc()
		m.PersistLatency.Observe(seconds)
	}
}

func (m *Metrics) incPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) incSpilled() {
	if m != nil {
		m.Spilled.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) setRetryDepth(n int) {
	if m != nil {
		m.RetryBufferDepth.Set(float64(n))
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
