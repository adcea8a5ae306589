package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published *prometheus.CounterVec
	Skipped   *prometheus.CounterVec
	BatchSize prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_outbox_relay_published_total",
			Help: "Outbox publish attempts, by target system and result",
		}, []string{"target", "result"}),
		Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_outbox_relay_skipped_total",
			Help: "Outbox messages skipped because the target circuit was open",
		}, []string{"target"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "actiongate_outbox_relay_batch_size",
			Help:    "Messages claimed per relay pass",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) incPublished(target string, ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.Published.WithLabelValues(target, result).Inc()
}

func (m *Metrics) incSkipped(target string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(target).Inc()
}

func (m *Metrics) observeBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}
