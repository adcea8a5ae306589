// Package models defines the human approval request tied to a pending action.
package models

import (
	"time"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
)

// Status is the decision state. APPROVED and REJECTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Request is kept after a decision so replays can echo it.
type Request struct {
	ID            id.ApprovalRequestID `json:"request_id"`
	TenantID      id.TenantID          `json:"tenant_id"`
	ActionID      id.ActionID          `json:"action_id"`
	OwnerUserID   id.UserID            `json:"owner_user_id"`
	RequiredLevel int                  `json:"required_level"`
	Status        Status               `json:"status"`
	Reason        string               `json:"reason,omitempty"`
	DecidedBy     *id.UserID           `json:"decided_by,omitempty"`
	DecidedAt     *time.Time           `json:"decided_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

// Decision is the terminal state a caller asks for.
type Decision struct {
	Status    Status
	DecidedBy id.UserID
	Reason    string
	DecidedAt time.Time
}

func (d Decision) Validate() error {
	if !d.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeValidation, "decision must be APPROVED or REJECTED")
	}
	if d.DecidedBy.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "decision requires a user")
	}
	return nil
}

// IsExpired reports whether a pending request can no longer be decided.
// Decided requests never expire.
func (r *Request) IsExpired(now time.Time) bool {
	if r.Status != StatusPending || r.ExpiresAt == nil {
		return false
	}
	return !now.Before(*r.ExpiresAt)
}

// Decide records d on a pending request.
func (r *Request) Decide(d Decision) error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "approval request already "+string(r.Status))
	}
	if err := d.Validate(); err != nil {
		return err
	}
	by := d.DecidedBy
	at := d.DecidedAt
	r.Status = d.Status
	r.Reason = d.Reason
	r.DecidedBy = &by
	r.DecidedAt = &at
	return nil
}

func (r *Request) Clone() *Request {
	c := *r
	if r.DecidedBy != nil {
		by := *r.DecidedBy
		c.DecidedBy = &by
	}
	if r.DecidedAt != nil {
		at := *r.DecidedAt
		c.DecidedAt = &at
	}
	if r.ExpiresAt != nil {
		at := *r.ExpiresAt
		c.ExpiresAt = &at
	}
	return &c
}
