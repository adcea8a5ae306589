package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"actiongate/internal/approval/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	txcontext "actiongate/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists approval requests in approval_requests. A decision
// is a conditional UPDATE on status = 'PENDING'.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, tenant_id, action_id, owner_user_id, required_level, status,
	reason, decided_by, decided_at, created_at, expires_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	query := `
		INSERT INTO approval_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.TenantID), uuid.UUID(r.ActionID), uuid.UUID(r.OwnerUserID),
		r.RequiredLevel, string(r.Status), nullString(r.Reason), nullUserID(r.DecidedBy),
		r.DecidedAt, r.CreatedAt, r.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE tenant_id = $1 AND id = $2`
	r, err := scanRequest(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find approval request: %w", err)
	}
	return r, nil
}

// CompareAndDecide records d only while the row is PENDING and unexpired.
// When the update matches nothing the row is read back to tell a replay from
// an expired or missing request.
func (s *PostgresStore) CompareAndDecide(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID, d models.Decision) (*models.Request, bool, error) {
	if err := d.Validate(); err != nil {
		return nil, false, err
	}
	query := `
		UPDATE approval_requests SET
			status = $3,
			reason = $4,
			decided_by = $5,
			decided_at = $6
		WHERE tenant_id = $1 AND id = $2
			AND status = 'PENDING'
			AND (expires_at IS NULL OR expires_at > $6)
		RETURNING ` + requestColumns
	r, err := scanRequest(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(requestID), string(d.Status),
		nullString(d.Reason), uuid.UUID(d.DecidedBy), d.DecidedAt,
	))
	if err == nil {
		return r, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("decide approval request: %w", err)
	}

	cur, err := s.Get(ctx, tenantID, requestID)
	if err != nil {
		return nil, false, err
	}
	if cur.Status.IsTerminal() {
		return cur, false, nil
	}
	return nil, false, sentinel.ErrExpired
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r         models.Request
		rowID     uuid.UUID
		tenantID  uuid.UUID
		actionID  uuid.UUID
		owner     uuid.UUID
		status    string
		reason    sql.NullString
		decidedBy uuid.NullUUID
		decidedAt sql.NullTime
		expiresAt sql.NullTime
	)
	if err := row.Scan(&rowID, &tenantID, &actionID, &owner, &r.RequiredLevel, &status,
		&reason, &decidedBy, &decidedAt, &r.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	r.ID = id.ApprovalRequestID(rowID)
	r.TenantID = id.TenantID(tenantID)
	r.ActionID = id.ActionID(actionID)
	r.OwnerUserID = id.UserID(owner)
	r.Status = models.Status(status)
	r.Reason = reason.String
	if decidedBy.Valid {
		by := id.UserID(decidedBy.UUID)
		r.DecidedBy = &by
	}
	if decidedAt.Valid {
		at := decidedAt.Time
		r.DecidedAt = &at
	}
	if expiresAt.Valid {
		at := expiresAt.Time
		r.ExpiresAt = &at
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUserID(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}
