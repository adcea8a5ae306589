package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"actiongate/internal/cases/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
	txcontext "actiongate/pkg/platform/tx"
)

// PostgresStore persists cases in the cases table. Every statement joins the
// transaction on ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, c models.Case) error {
	state, err := json.Marshal(c.State)
	if err != nil {
		return fmt.Errorf("marshal case state: %w", err)
	}
	var profileID any
	if c.ProfileID != nil {
		profileID = uuid.UUID(*c.ProfileID)
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	query := `
		INSERT INTO cases (id, tenant_id, case_type, profile_id, company_code, currency, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			case_type = EXCLUDED.case_type,
			profile_id = EXCLUDED.profile_id,
			company_code = EXCLUDED.company_code,
			currency = EXCLUDED.currency,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.TenantID), c.CaseType, profileID,
		c.CompanyCode, c.Currency, state, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, caseID id.CaseID) (*models.Case, error) {
	query := `
		SELECT id, tenant_id, case_type, profile_id, company_code, currency, state, updated_at
		FROM cases
		WHERE tenant_id = $1 AND id = $2
	`
	var (
		c         models.Case
		rowID     uuid.UUID
		rowTenant uuid.UUID
		profileID uuid.NullUUID
		company   sql.NullString
		currency  sql.NullString
		state     []byte
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(caseID)).Scan(
		&rowID, &rowTenant, &c.CaseType, &profileID, &company, &currency, &state, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	c.ID = id.CaseID(rowID)
	c.TenantID = id.TenantID(rowTenant)
	if profileID.Valid {
		pid := id.ProfileID(profileID.UUID)
		c.ProfileID = &pid
	}
	c.CompanyCode = company.String
	c.Currency = currency.String
	c.State = models.State{}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &c.State); err != nil {
			return nil, fmt.Errorf("decode case state: %w", err)
		}
	}
	return &c, nil
}

func (s *PostgresStore) UpdateState(ctx context.Context, tenantID id.TenantID, caseID id.CaseID, state models.State, updatedAt time.Time) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal case state: %w", err)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE cases SET state = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(caseID), raw, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case state: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
