package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

// PostgresStore reads policy profiles, guardrail rules and code tables.
// Writes belong to the administration service; Upsert helpers exist for
// seeding and tests.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, tenant_id, name, is_default, company_codes, currencies, pii_rules, threshold_rules, updated_at`

func (s *PostgresStore) DefaultProfile(ctx context.Context, tenantID id.TenantID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM policy_profiles WHERE tenant_id = $1 AND is_default LIMIT 1`
	return s.queryProfile(ctx, query, uuid.UUID(tenantID))
}

func (s *PostgresStore) Profile(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM policy_profiles WHERE tenant_id = $1 AND id = $2`
	return s.queryProfile(ctx, query, uuid.UUID(tenantID), uuid.UUID(profileID))
}

func (s *PostgresStore) queryProfile(ctx context.Context, query string, args ...any) (*models.Profile, error) {
	var (
		p              models.Profile
		profileID      uuid.UUID
		tenantID       uuid.UUID
		companies      pq.StringArray
		currencies     pq.StringArray
		piiRules       []byte
		thresholdRules []byte
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&profileID, &tenantID, &p.Name, &p.IsDefault, &companies, &currencies,
		&piiRules, &thresholdRules, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find policy profile: %w", err)
	}
	p.ID = id.ProfileID(profileID)
	p.TenantID = id.TenantID(tenantID)
	p.CompanyCodes = []string(companies)
	p.Currencies = []string(currencies)
	p.PIIRules = json.RawMessage(piiRules)
	p.ThresholdRules = json.RawMessage(thresholdRules)
	return &p, nil
}

func (s *PostgresStore) ListRules(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) ([]models.Rule, error) {
	query := `
		SELECT id, name, case_type, action_type, condition, effect, approval_level, enabled, priority
		FROM guardrail_rules
		WHERE tenant_id = $1 AND profile_id = $2
		ORDER BY priority DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(profileID))
	if err != nil {
		return nil, fmt.Errorf("list guardrail rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var (
			r         models.Rule
			ruleID    uuid.UUID
			condition []byte
			effect    string
		)
		if err := rows.Scan(&ruleID, &r.Name, &r.CaseType, &r.ActionType, &condition, &effect,
			&r.ApprovalLevel, &r.Enabled, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan guardrail rule: %w", err)
		}
		if err := json.Unmarshal(condition, &r.Condition); err != nil {
			return nil, fmt.Errorf("decode condition of rule %s: %w", ruleID, err)
		}
		r.ID = id.RuleID(ruleID)
		r.TenantID = tenantID
		r.ProfileID = profileID
		r.Effect = models.Effect(effect)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guardrail rules: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) ActiveCompanyCodes(ctx context.Context, tenantID id.TenantID) ([]string, error) {
	return s.activeCodes(ctx, `SELECT code FROM company_codes WHERE tenant_id = $1 AND active ORDER BY code`, tenantID)
}

func (s *PostgresStore) ActiveCurrencies(ctx context.Context, tenantID id.TenantID) ([]string, error) {
	return s.activeCodes(ctx, `SELECT code FROM currencies WHERE tenant_id = $1 AND active ORDER BY code`, tenantID)
}

func (s *PostgresStore) activeCodes(ctx context.Context, query string, tenantID id.TenantID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list active codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// PutProfile upserts a profile; making it default clears the previous default.
func (s *PostgresStore) PutProfile(ctx context.Context, p models.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE policy_profiles SET is_default = false WHERE tenant_id = $1 AND id <> $2 AND is_default`,
			uuid.UUID(p.TenantID), uuid.UUID(p.ID)); err != nil {
			return fmt.Errorf("clear default profile: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO policy_profiles (id, tenant_id, name, is_default, company_codes, currencies, pii_rules, threshold_rules, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_default = EXCLUDED.is_default,
			company_codes = EXCLUDED.company_codes,
			currencies = EXCLUDED.currencies,
			pii_rules = EXCLUDED.pii_rules,
			threshold_rules = EXCLUDED.threshold_rules,
			updated_at = now()
	`,
		uuid.UUID(p.ID), uuid.UUID(p.TenantID), p.Name, p.IsDefault,
		pq.Array(p.CompanyCodes), pq.Array(p.Currencies),
		nullRaw(p.PIIRules), nullRaw(p.ThresholdRules),
	)
	if err != nil {
		return fmt.Errorf("upsert policy profile: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) PutRule(ctx context.Context, r models.Rule) error {
	condition, err := json.Marshal(r.Condition.Normalized())
	if err != nil {
		return fmt.Errorf("encode rule condition: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guardrail_rules (id, tenant_id, profile_id, name, case_type, action_type, condition, effect, approval_level, enabled, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			case_type = EXCLUDED.case_type,
			action_type = EXCLUDED.action_type,
			condition = EXCLUDED.condition,
			effect = EXCLUDED.effect,
			approval_level = EXCLUDED.approval_level,
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority
	`,
		uuid.UUID(r.ID), uuid.UUID(r.TenantID), uuid.UUID(r.ProfileID), r.Name, r.CaseType, r.ActionType,
		condition, string(r.Effect), r.ApprovalLevel, r.Enabled, r.Priority,
	)
	if err != nil {
		return fmt.Errorf("upsert guardrail rule: %w", err)
	}
	return nil
}

// SetCodeTable replaces the tenant's active company codes and currencies.
func (s *PostgresStore) SetCodeTable(ctx context.Context, tenantID id.TenantID, companies, currencies []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin code table update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tenant := uuid.UUID(tenantID)
	for _, stmt := range []struct {
		table string
		codes []string
	}{{"company_codes", companies}, {"currencies", currencies}} {
		if _, err := tx.ExecContext(ctx, `UPDATE `+stmt.table+` SET active = false WHERE tenant_id = $1`, tenant); err != nil {
			return fmt.Errorf("deactivate %s: %w", stmt.table, err)
		}
		if len(stmt.codes) == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO `+stmt.table+` (tenant_id, code, active)
			SELECT $1, unnest($2::text[]), true
			ON CONFLICT (tenant_id, code) DO UPDATE SET active = true
		`, tenant, pq.Array(stmt.codes))
		if err != nil {
			return fmt.Errorf("activate %s: %w", stmt.table, err)
		}
	}
	return tx.Commit()
}

func nullRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
