package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts outbox activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Enqueued  *prometheus.CounterVec
	Results   *prometheus.CounterVec
	Replays   prometheus.Counter
	Exhausted *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_outbox_enqueued_total",
			Help: "Outbox messages enqueued, by target system",
		}, []string{"target"}),
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_outbox_results_total",
			Help: "Delivery results applied to outbox messages, by status",
		}, []string{"status"}),
		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_outbox_result_replays_total",
			Help: "PROCESSED results replayed against an already processed message",
		}),
		Exhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_outbox_retries_exhausted_total",
			Help: "Outbox messages that used up their delivery retries, by target system",
		}, []string{"target"}),
	}
}

func (m *Metrics) IncEnqueued(target string) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(target).Inc()
}

func (m *Metrics) IncResult(status string) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(status).Inc()
}

func (m *Metrics) IncReplay() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

func (m *Metrics) IncExhausted(target string) {
	if m == nil {
		return
	}
	m.Exhausted.WithLabelValues(target).Inc()
}
