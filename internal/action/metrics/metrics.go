package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the action lifecycle.
type Metrics struct {
	// Proposals by guardrail verdict and action type
	Proposals *prometheus.CounterVec

	// Scope denials by action type
	ScopeDenials *prometheus.CounterVec

	// Lifecycle transitions by target status
	Transitions *prometheus.CounterVec

	// Execution results by action type and status (EXECUTED, FAILED)
	Executions *prometheus.CounterVec

	ProposeLatency prometheus.Histogram
}

// New creates a new Metrics instance with all action metrics registered.
func New() *Metrics {
	return &Metrics{
		Proposals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_action_proposals_total",
			Help: "Proposed actions by guardrail verdict and action type",
		}, []string{"verdict", "action_type"}),
		ScopeDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_action_scope_denials_total",
			Help: "Proposals rejected because company code or currency is out of scope",
		}, []string{"action_type"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_action_transitions_total",
			Help: "Action state transitions by target status",
		}, []string{"status"}),
		Executions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_action_executions_total",
			Help: "Executed actions by action type and final status",
		}, []string{"action_type", "status"}),
		ProposeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "actiongate_action_propose_duration_seconds",
			Help:    "Duration of propose including evaluation and synchronous execution",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementProposal(verdict, actionType string) {
	if m != nil {
		m.Proposals.WithLabelValues(verdict, actionType).Inc()
	}
}

func (m *Metrics) IncrementScopeDenial(actionType string) {
	if m != nil {
		m.ScopeDenials.WithLabelValues(actionType).Inc()
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementExecution(actionType, status string) {
	if m != nil {
		m.Executions.WithLabelValues(actionType, status).Inc()
	}
}

func (m *Metrics) ObserveProposeLatency(d time.Duration) {
	if m != nil {
		m.ProposeLatency.Observe(d.Seconds())
	}
}
