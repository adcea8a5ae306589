package audit

import (
	"context"
	"encoding/json"
	"time"

	id "actiongate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers decisions with regulatory significance:
	// executed actions and human approval decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access violations such as scope denials.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle and relay activity.
	CategoryOperations EventCategory = "operations"
)

// EventType names what happened.
type EventType string

const (
	EventActionProposed         EventType = "ACTION_PROPOSED"
	EventActionAllowed          EventType = "ACTION_ALLOWED"
	EventActionApprovalRequired EventType = "ACTION_APPROVAL_REQUIRED"
	EventActionDenied           EventType = "ACTION_DENIED"
	EventActionExecuting        EventType = "ACTION_EXECUTING"
	EventActionPendingApproval  EventType = "ACTION_PENDING_APPROVAL"
	EventActionExecuted         EventType = "ACTION_EXECUTED"
	EventActionFailed           EventType = "ACTION_FAILED"
	EventActionCanceled         EventType = "ACTION_CANCELED"

	EventScopeDenied EventType = "SCOPE_DENIED"

	EventApprovalApproved EventType = "APPROVAL_APPROVED"
	EventApprovalRejected EventType = "APPROVAL_REJECTED"

	EventOutboxEnqueue EventType = "INTEGRATION_OUTBOX_ENQUEUE"
	EventResultUpdate  EventType = "INTEGRATION_RESULT_UPDATE"
)

var eventCategories = map[EventType]EventCategory{
	EventActionExecuted:   CategoryCompliance,
	EventActionFailed:     CategoryCompliance,
	EventApprovalApproved: CategoryCompliance,
	EventApprovalRejected: CategoryCompliance,

	EventScopeDenied:  CategorySecurity,
	EventActionDenied: CategorySecurity,

	EventActionProposed:         CategoryOperations,
	EventActionAllowed:          CategoryOperations,
	EventActionApprovalRequired: CategoryOperations,
	EventActionExecuting:        CategoryOperations,
	EventActionPendingApproval:  CategoryOperations,
	EventActionCanceled:         CategoryOperations,
	EventOutboxEnqueue:          CategoryOperations,
	EventResultUpdate:           CategoryOperations,
}

// Category returns the EventCategory for this event type.
// Unknown types default to CategoryOperations.
func (t EventType) Category() EventCategory {
	if cat, ok := eventCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}

// ResourceType names the entity an event is about.
type ResourceType string

const (
	ResourceAction          ResourceType = "ACTION"
	ResourceApprovalRequest ResourceType = "APPROVAL_REQUEST"
	ResourceOutboxMessage   ResourceType = "OUTBOX_MESSAGE"
	ResourceCase            ResourceType = "CASE"
)

// ActorType distinguishes who caused the event.
type ActorType string

const (
	ActorHuman  ActorType = "HUMAN"
	ActorAgent  ActorType = "AGENT"
	ActorSystem ActorType = "SYSTEM"
)

// Channel is the surface an event entered through.
type Channel string

const (
	ChannelAPI      Channel = "API"
	ChannelInternal Channel = "INTERNAL"
	ChannelRelay    Channel = "RELAY"
	ChannelConsumer Channel = "CONSUMER"
)

// Outcome of the audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeDenied  Outcome = "DENIED"
	OutcomeNoop    Outcome = "NOOP"
)

// Severity levels for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is an append-only audit record. It is never updated or deleted.
type Event struct {
	ID           id.AuditID
	TenantID     id.TenantID
	CreatedAt    time.Time
	Category     EventCategory
	Type         EventType
	ResourceType ResourceType
	ResourceID   string
	ActorType    ActorType
	ActorID      string
	Channel      Channel
	Outcome      Outcome
	Severity     Severity

	Before json.RawMessage
	After  json.RawMessage
	Diff   json.RawMessage

	Evidence map[string]any
	Tags     map[string]string

	IP               string
	UserAgent        string
	RequestID        string
	GatewayRequestID string
	TraceID          string
	SpanID           string
}

// Writer is the append contract the lifecycle components depend on.
// Log never fails the caller; LogScopeDenied is synchronous and reports
// persistence failures.
type Writer interface {
	Log(ctx context.Context, event Event)
	LogScopeDenied(ctx context.Context, denial ScopeDenial) error
}

// ScopeDenial describes an out-of-scope attempt.
type ScopeDenial struct {
	TenantID     id.TenantID
	ResourceType ResourceType
	ResourceID   string
	ActorType    ActorType
	ActorID      string
	Channel      Channel
	CompanyCode  string
	Currency     string
	ProfileID    string
	ActionType   string
}

// Event converts the denial into its audit record.
func (d ScopeDenial) Event() Event {
	evidence := map[string]any{"violated_rules": []string{"OUT_OF_SCOPE"}}
	if d.CompanyCode != "" {
		evidence["company_code"] = d.CompanyCode
	}
	if d.Currency != "" {
		evidence["currency"] = d.Currency
	}
	if d.ProfileID != "" {
		evidence["profile_id"] = d.ProfileID
	}
	if d.ActionType != "" {
		evidence["action_type"] = d.ActionType
	}
	return Event{
		TenantID:     d.TenantID,
		Type:         EventScopeDenied,
		ResourceType: d.ResourceType,
		ResourceID:   d.ResourceID,
		ActorType:    d.ActorType,
		ActorID:      d.ActorID,
		Channel:      d.Channel,
		Outcome:      OutcomeDenied,
		Severity:     SeverityWarning,
		Evidence:     evidence,
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByResource(ctx context.Context, tenantID id.TenantID, resourceType ResourceType, resourceID string) ([]Event, error)
}

// MarshalSnapshot encodes v for the Before/After/Diff blobs; nil stays nil.
func MarshalSnapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
