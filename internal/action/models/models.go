// Package models defines the action entity and its state machine.
package models

import (
	"encoding/json"
	"time"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
)

// Status is a lifecycle state.
type Status string

const (
	StatusProposed         Status = "PROPOSED"
	StatusAllowed          Status = "ALLOWED"
	StatusApprovalRequired Status = "APPROVAL_REQUIRED"
	StatusDenied           Status = "DENIED"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusExecuting        Status = "EXECUTING"
	StatusExecuted         Status = "EXECUTED"
	StatusFailed           Status = "FAILED"
	StatusCanceled         Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusProposed:         {StatusAllowed, StatusApprovalRequired, StatusDenied, StatusCanceled},
	StatusAllowed:          {StatusExecuting},
	StatusApprovalRequired: {StatusPendingApproval},
	StatusDenied:           {StatusCanceled},
	StatusPendingApproval:  {StatusExecuting, StatusCanceled},
	StatusExecuting:        {StatusExecuted, StatusFailed},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsCancelable reports whether a caller may cancel an action in this state.
func (s Status) IsCancelable() bool {
	return s == StatusProposed || s == StatusPendingApproval
}

type Action struct {
	ID                id.ActionID           `json:"action_id"`
	TenantID          id.TenantID           `json:"tenant_id"`
	CaseID            id.CaseID             `json:"case_id"`
	ActionType        string                `json:"action_type"`
	Payload           json.RawMessage       `json:"payload"`
	Status            Status                `json:"status"`
	ProposedBy        string                `json:"proposed_by,omitempty"`
	ApprovalRequestID *id.ApprovalRequestID `json:"approval_request_id,omitempty"`
	Before            json.RawMessage       `json:"before,omitempty"`
	After             json.RawMessage       `json:"after,omitempty"`
	Diff              json.RawMessage       `json:"diff,omitempty"`
	FailureReason     string                `json:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ExecutedAt        *time.Time            `json:"executed_at,omitempty"`
}

// TransitionTo moves the action to next, rejecting moves the state machine
// does not allow.
func (a *Action) TransitionTo(next Status, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState,
			"action cannot move from "+string(a.Status)+" to "+string(next))
	}
	a.Status = next
	a.UpdatedAt = at
	return nil
}

// Clone returns a deep enough copy for stores to hand out.
func (a *Action) Clone() *Action {
	c := *a
	if a.ApprovalRequestID != nil {
		rid := *a.ApprovalRequestID
		c.ApprovalRequestID = &rid
	}
	if a.ExecutedAt != nil {
		at := *a.ExecutedAt
		c.ExecutedAt = &at
	}
	return &c
}
