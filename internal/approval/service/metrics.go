package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts approval decisions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Opened             prometheus.Counter
	Decisions          *prometheus.CounterVec
	Replays            *prometheus.CounterVec
	IdentityMismatches prometheus.Counter
	ResumeFailures     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_approval_requests_opened_total",
			Help: "Approval requests opened for actions awaiting a human decision",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_approval_decisions_total",
			Help: "Recorded approval decisions, by status",
		}, []string{"status"}),
		Replays: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_approval_replays_total",
			Help: "Approve or reject calls answered from an existing decision, by stored status",
		}, []string{"status"}),
		IdentityMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "actiongate_approval_identity_mismatches_total",
			Help: "Approve or reject calls whose headers did not match the verified credential",
		}),
		ResumeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "actiongate_approval_resume_failures_total",
			Help: "Decisions whose action could not be resumed, by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncOpened() {
	if m == nil {
		return
	}
	m.Opened.Inc()
}

func (m *Metrics) IncDecision(status string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncReplay(status string) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(status).Inc()
}

func (m *Metrics) IncIdentityMismatch() {
	if m == nil {
		return
	}
	m.IdentityMismatches.Inc()
}

func (m *Metrics) IncResumeFailure(code string) {
	if m == nil {
		return
	}
	m.ResumeFailures.WithLabelValues(code).Inc()
}
