package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"actiongate/internal/action/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	txcontext "actiongate/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists actions in the actions table. Status updates are
// conditional on the status the caller read, so two racing transitions
// cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Action) error {
	query := `
		INSERT INTO actions (
			id, tenant_id, case_id, action_type, payload, status, proposed_by,
			approval_request_id, before_state, after_state, diff, failure_reason,
			created_at, updated_at, executed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), uuid.UUID(a.TenantID), uuid.UUID(a.CaseID), a.ActionType,
		nullJSON(a.Payload), string(a.Status), nullString(a.ProposedBy),
		nullRequestID(a.ApprovalRequestID), nullJSON(a.Before), nullJSON(a.After), nullJSON(a.Diff),
		nullString(a.FailureReason), a.CreatedAt, a.UpdatedAt, a.ExecutedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

const actionColumns = `
	id, tenant_id, case_id, action_type, payload, status, proposed_by,
	approval_request_id, before_state, after_state, diff, failure_reason,
	created_at, updated_at, executed_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*models.Action, error) {
	var (
		a          models.Action
		rowID      uuid.UUID
		rowTenant  uuid.UUID
		caseID     uuid.UUID
		status     string
		proposedBy sql.NullString
		requestID  uuid.NullUUID
		failure    sql.NullString
		executedAt sql.NullTime
		payload    []byte
		before     []byte
		after      []byte
		diff       []byte
	)
	err := row.Scan(
		&rowID, &rowTenant, &caseID, &a.ActionType, &payload, &status, &proposedBy,
		&requestID, &before, &after, &diff, &failure,
		&a.CreatedAt, &a.UpdatedAt, &executedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ID = id.ActionID(rowID)
	a.TenantID = id.TenantID(rowTenant)
	a.CaseID = id.CaseID(caseID)
	a.Status = models.Status(status)
	a.ProposedBy = proposedBy.String
	a.FailureReason = failure.String
	a.Payload, a.Before, a.After, a.Diff = payload, before, after, diff
	if requestID.Valid {
		rid := id.ApprovalRequestID(requestID.UUID)
		a.ApprovalRequestID = &rid
	}
	if executedAt.Valid {
		at := executedAt.Time
		a.ExecutedAt = &at
	}
	return &a, nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE tenant_id = $1 AND id = $2`
	a, err := scanAction(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(actionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find action: %w", err)
	}
	return a, nil
}

// ListStale returns actions of every tenant resting in status since before
// updatedBefore, oldest first.
func (s *PostgresStore) ListStale(ctx context.Context, status models.Status, updatedBefore time.Time, limit int) ([]*models.Action, error) {
	query := `SELECT ` + actionColumns + `
		FROM actions
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, string(status), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale actions: %w", err)
	}
	defer rows.Close()

	var out []*models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale action: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale actions: %w", err)
	}
	return out, nil
}

// Update writes the mutable columns when the row still has status expected.
func (s *PostgresStore) Update(ctx context.Context, a *models.Action, expected models.Status) error {
	query := `
		UPDATE actions SET
			status = $3,
			approval_request_id = $4,
			before_state = $5,
			after_state = $6,
			diff = $7,
			failure_reason = $8,
			updated_at = $9,
			executed_at = $10
		WHERE tenant_id = $1 AND id = $2 AND status = $11
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.TenantID), uuid.UUID(a.ID), string(a.Status),
		nullRequestID(a.ApprovalRequestID), nullJSON(a.Before), nullJSON(a.After), nullJSON(a.Diff),
		nullString(a.FailureReason), a.UpdatedAt, a.ExecutedAt, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	if n == 1 {
		return nil
	}

	// distinguish a missing row from a lost race
	var exists bool
	err = txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM actions WHERE tenant_id = $1 AND id = $2)`,
		uuid.UUID(a.TenantID), uuid.UUID(a.ID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check action: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullRequestID(rid *id.ApprovalRequestID) any {
	if rid == nil {
		return nil
	}
	return uuid.UUID(*rid)
}
