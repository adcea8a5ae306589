package domain

import (
	"github.com/google/uuid"

	dErrors "actiongate/pkg/domain-errors"
)

// Typed identifiers. Each is a distinct type so a tenant id can never be
// passed where an action id is expected.
type (
	TenantID          uuid.UUID
	UserID            uuid.UUID
	ProfileID         uuid.UUID
	CaseID            uuid.UUID
	ActionID          uuid.UUID
	ApprovalRequestID uuid.UUID
	OutboxID          uuid.UUID
	AuditID           uuid.UUID
	RuleID            uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is malformed")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is malformed")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant id", s)
	return TenantID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID("profile id", s)
	return ProfileID(u), err
}

func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID("case id", s)
	return CaseID(u), err
}

func ParseActionID(s string) (ActionID, error) {
	u, err := parseUUID("action id", s)
	return ActionID(u), err
}

func ParseApprovalRequestID(s string) (ApprovalRequestID, error) {
	u, err := parseUUID("request id", s)
	return ApprovalRequestID(u), err
}

func ParseOutboxID(s string) (OutboxID, error) {
	u, err := parseUUID("outbox id", s)
	return OutboxID(u), err
}

func ParseRuleID(s string) (RuleID, error) {
	u, err := parseUUID("rule id", s)
	return RuleID(u), err
}

func (id TenantID) String() string          { return uuid.UUID(id).String() }
func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id ProfileID) String() string         { return uuid.UUID(id).String() }
func (id CaseID) String() string            { return uuid.UUID(id).String() }
func (id ActionID) String() string          { return uuid.UUID(id).String() }
func (id ApprovalRequestID) String() string { return uuid.UUID(id).String() }
func (id OutboxID) String() string          { return uuid.UUID(id).String() }
func (id AuditID) String() string           { return uuid.UUID(id).String() }
func (id RuleID) String() string            { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ApprovalRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OutboxID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids serialize as plain UUID strings in JSON.
func (id TenantID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }
func (id ProfileID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id CaseID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }
func (id ActionID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ApprovalRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OutboxID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id AuditID) MarshalText() ([]byte, error)           { return uuid.UUID(id).MarshalText() }
func (id RuleID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error            { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProfileID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CaseID) UnmarshalText(b []byte) error            { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActionID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ApprovalRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OutboxID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditID) UnmarshalText(b []byte) error           { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RuleID) UnmarshalText(b []byte) error            { return (*uuid.UUID)(id).UnmarshalText(b) }
