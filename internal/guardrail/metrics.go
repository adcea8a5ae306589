package guardrail

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for guardrail evaluation.
type Metrics struct {
	// Verdicts by result and whether the scope check produced them
	Verdicts *prometheus.CounterVec

	// Evaluations that hit the unconfigured-pair default
	Unconfigured *prometheus.CounterVec

	EvaluateLatency prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_guardrail_verdicts_total",
			Help: "Guardrail verdicts by result",
		}, []string{"verdict", "out_of_scope"}),
		Unconfigured: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_guardrail_unconfigured_total",
			Help: "Evaluations with no matching rule, by fail-closed mode",
		}, []string{"fail_closed"}),
		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "actiongate_guardrail_evaluate_duration_seconds",
			Help:    "Duration of guardrail evaluation including scope and rule loading",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementVerdict(v Verdict, outOfScope bool) {
	if m != nil {
		m.Verdicts.WithLabelValues(string(v), strconv.FormatBool(outOfScope)).Inc()
	}
}

func (m *Metrics) IncrementUnconfigured(failClosed bool) {
	if m != nil {
		m.Unconfigured.WithLabelValues(strconv.FormatBool(failClosed)).Inc()
	}
}

func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
