package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "actiongate/pkg/domain"
	audit "actiongate/pkg/platform/audit"
	txcontext "actiongate/pkg/platform/tx"
)

// Store appends audit events to the audit_events table. Rows are never
// updated; the primary key makes retried appends idempotent.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. Duplicate ids are ignored so the async worker can
// retry a write whose commit acknowledgement was lost.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	evidence, err := marshalMap(event.Evidence)
	if err != nil {
		return fmt.Errorf("marshal audit evidence: %w", err)
	}
	tags, err := marshalMap(event.Tags)
	if err != nil {
		return fmt.Errorf("marshal audit tags: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, tenant_id, created_at, category, event_type,
			resource_type, resource_id, actor_type, actor_id, channel,
			outcome, severity, before_state, after_state, diff,
			evidence, tags, ip, user_agent, request_id,
			gateway_request_id, trace_id, span_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.TenantID),
		event.CreatedAt,
		string(event.Category),
		string(event.Type),
		string(event.ResourceType),
		event.ResourceID,
		string(event.ActorType),
		nullString(event.ActorID),
		string(event.Channel),
		string(event.Outcome),
		string(event.Severity),
		nullJSON(event.Before),
		nullJSON(event.After),
		nullJSON(event.Diff),
		nullJSON(evidence),
		nullJSON(tags),
		nullString(event.IP),
		nullString(event.UserAgent),
		nullString(event.RequestID),
		nullString(event.GatewayRequestID),
		nullString(event.TraceID),
		nullString(event.SpanID),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByResource returns a resource's audit trail oldest first.
func (s *Store) ListByResource(ctx context.Context, tenantID id.TenantID, resourceType audit.ResourceType, resourceID string) ([]audit.Event, error) {
	query := `
		SELECT id, tenant_id, created_at, category, event_type,
			resource_type, resource_id, actor_type, COALESCE(actor_id, ''), channel,
			outcome, severity, before_state, after_state, diff,
			evidence, tags, COALESCE(ip, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''),
			COALESCE(gateway_request_id, ''), COALESCE(trace_id, ''), COALESCE(span_id, '')
		FROM audit_events
		WHERE tenant_id = $1 AND resource_type = $2 AND resource_id = $3
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), string(resourceType), resourceID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			e                          audit.Event
			eventID, tenantID          uuid.UUID
			category, eventType        string
			resourceType, actorType    string
			channel, outcome, severity string
			before, after, diff        []byte
			evidence, tags             []byte
		)
		if err := rows.Scan(
			&eventID, &tenantID, &e.CreatedAt, &category, &eventType,
			&resourceType, &e.ResourceID, &actorType, &e.ActorID, &channel,
			&outcome, &severity, &before, &after, &diff,
			&evidence, &tags, &e.IP, &e.UserAgent, &e.RequestID,
			&e.GatewayRequestID, &e.TraceID, &e.SpanID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.AuditID(eventID)
		e.TenantID = id.TenantID(tenantID)
		e.Category = audit.EventCategory(category)
		e.Type = audit.EventType(eventType)
		e.ResourceType = audit.ResourceType(resourceType)
		e.ActorType = audit.ActorType(actorType)
		e.Channel = audit.Channel(channel)
		e.Outcome = audit.Outcome(outcome)
		e.Severity = audit.Severity(severity)
		e.Before, e.After, e.Diff = before, after, diff
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &e.Evidence); err != nil {
				return nil, fmt.Errorf("decode audit evidence: %w", err)
			}
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &e.Tags); err != nil {
				return nil, fmt.Errorf("decode audit tags: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func marshalMap[V any](m map[string]V) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
