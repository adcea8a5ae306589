// Package models defines integration outbox messages.
package models

import (
	"encoding/json"
	"time"

	id "actiongate/pkg/domain"
)

// Status of a delivery. PROCESSED is terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces status monotonicity. FAILED may be recorded again
// on a retried delivery; nothing leaves PROCESSED.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessed || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessed || next == StatusFailed
	default:
		return false
	}
}

type Message struct {
	ID            id.OutboxID     `json:"id"`
	TenantID      id.TenantID     `json:"tenant_id"`
	TargetSystem  string          `json:"target_system"`
	EventType     string          `json:"event_type"`
	EventKey      string          `json:"event_key"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	ResultMessage string          `json:"result_message,omitempty"`
	// NextAttemptAt gates the relay: a claim lease, a redelivery deadline
	// after a publish, or a retry backoff after a failure.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty"`
	Version       int        `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Deliverable reports whether the relay may publish m at now.
func (m *Message) Deliverable(now time.Time, maxRetries int) bool {
	switch m.Status {
	case StatusPending:
	case StatusFailed:
		if m.RetryCount >= maxRetries {
			return false
		}
	default:
		return false
	}
	return m.NextAttemptAt == nil || !m.NextAttemptAt.After(now)
}

func (m *Message) Clone() *Message {
	c := *m
	if m.NextAttemptAt != nil {
		t := *m.NextAttemptAt
		c.NextAttemptAt = &t
	}
	if m.DispatchedAt != nil {
		t := *m.DispatchedAt
		c.DispatchedAt = &t
	}
	return &c
}

// Envelope is what the relay publishes to integration.<target>.
type Envelope struct {
	OutboxID  string          `json:"outboxId"`
	TenantID  string          `json:"tenantId"`
	EventType string          `json:"eventType"`
	EventKey  string          `json:"eventKey"`
	Payload   json.RawMessage `json:"payload"`
}

// Result is what downstream systems publish to integration.results.
type Result struct {
	TenantID      string `json:"tenantId"`
	OutboxID      string `json:"outboxId"`
	Status        Status `json:"status"`
	ResultMessage string `json:"resultMessage"`
}
