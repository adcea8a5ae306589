package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"actiongate/internal/outbox/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	txcontext "actiongate/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists outbox rows in integration_outbox. Create joins the
// caller's transaction so an executed action and its message commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const messageColumns = `id, tenant_id, target_system, event_type, event_key, payload, status,
	retry_count, last_error, result_message, next_attempt_at, dispatched_at, version,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.Message) error {
	query := `INSERT INTO integration_outbox (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.ID), uuid.UUID(m.TenantID), m.TargetSystem, m.EventType, m.EventKey,
		[]byte(m.Payload), string(m.Status), m.RetryCount, nullString(m.LastError),
		nullString(m.ResultMessage), m.NextAttemptAt, m.DispatchedAt, m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM integration_outbox WHERE tenant_id = $1 AND id = $2`
	var (
		m         models.Message
		rowID     uuid.UUID
		rowTenant uuid.UUID
		payload   []byte
		status    string
		lastError sql.NullString
		result    sql.NullString
		nextAt    sql.NullTime
		sentAt    sql.NullTime
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(outboxID)).Scan(
		&rowID, &rowTenant, &m.TargetSystem, &m.EventType, &m.EventKey, &payload, &status,
		&m.RetryCount, &lastError, &result, &nextAt, &sentAt, &m.Version,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find outbox message: %w", err)
	}
	m.ID = id.OutboxID(rowID)
	m.TenantID = id.TenantID(rowTenant)
	m.Payload = payload
	m.Status = models.Status(status)
	m.LastError = lastError.String
	m.ResultMessage = result.String
	if nextAt.Valid {
		t := nextAt.Time
		m.NextAttemptAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		m.DispatchedAt = &t
	}
	return &m, nil
}

// Update writes status and retry bookkeeping under an optimistic version
// check. The status guard keeps a PROCESSED row from ever regressing even if
// a caller skipped the model check.
func (s *PostgresStore) Update(ctx context.Context, m *models.Message) error {
	query := `
		UPDATE integration_outbox SET
			status = $4,
			retry_count = $5,
			last_error = $6,
			result_message = $7,
			next_attempt_at = $8,
			dispatched_at = $9,
			updated_at = $10,
			version = version + 1
		WHERE tenant_id = $1 AND id = $2 AND version = $3
			AND (status <> 'PROCESSED' OR $4 = 'PROCESSED')
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.TenantID), uuid.UUID(m.ID), m.Version,
		string(m.Status), m.RetryCount, nullString(m.LastError), nullString(m.ResultMessage),
		m.NextAttemptAt, m.DispatchedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, m.TenantID, m.ID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	m.Version++
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
