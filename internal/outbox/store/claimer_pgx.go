package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"actiongate/internal/outbox/models"
	id "actiongate/pkg/domain"
)

// PgxClaimer leases deliverable rows for the relay. Several relay replicas
// can poll at once: SKIP LOCKED hands each row to one of them, and the lease
// written to next_attempt_at hides it from the others until it expires.
type PgxClaimer struct {
	pool *pgxpool.Pool
}

func NewPgxClaimer(pool *pgxpool.Pool) *PgxClaimer {
	return &PgxClaimer{pool: pool}
}

const claimQuery = `
WITH ready AS (
	SELECT id
	FROM integration_outbox
	WHERE (status = 'PENDING' OR (status = 'FAILED' AND retry_count < $4))
		AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
	ORDER BY created_at
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
UPDATE integration_outbox o
SET next_attempt_at = $2, version = o.version + 1
FROM ready
WHERE o.id = ready.id
RETURNING o.id, o.tenant_id, o.target_system, o.event_type, o.event_key, o.payload, o.status,
	o.retry_count, o.last_error, o.result_message, o.next_attempt_at, o.dispatched_at, o.version,
	o.created_at, o.updated_at`

func (c *PgxClaimer) Claim(ctx context.Context, now time.Time, lease time.Duration, limit, maxRetries int) ([]*models.Message, error) {
	rows, err := c.pool.Query(ctx, claimQuery, now, now.Add(lease), limit, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m, err := scanClaimed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	return out, nil
}

func scanClaimed(rows pgx.Rows) (*models.Message, error) {
	var (
		m         models.Message
		rowID     uuid.UUID
		tenantID  uuid.UUID
		status    string
		lastError *string
		result    *string
	)
	err := rows.Scan(
		&rowID, &tenantID, &m.TargetSystem, &m.EventType, &m.EventKey, &m.Payload, &status,
		&m.RetryCount, &lastError, &result, &m.NextAttemptAt, &m.DispatchedAt, &m.Version,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan claimed outbox message: %w", err)
	}
	m.ID = id.OutboxID(rowID)
	m.TenantID = id.TenantID(tenantID)
	m.Status = models.Status(status)
	if lastError != nil {
		m.LastError = *lastError
	}
	if result != nil {
		m.ResultMessage = *result
	}
	return &m, nil
}
