package models

import (
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/money"
	"actiongate/pkg/platform/codes"
)

// Profile is a tenant-owned policy bundle. Exactly one profile per tenant is
// the default; evaluations resolve either an explicit profile or the default.
//
// Invariants:
//   - empty CompanyCodes or Currencies leaves that dimension open
//   - profiles are referenced, never mutated, by the lifecycle
type Profile struct {
	ID             id.ProfileID    `json:"id" yaml:"id"`
	TenantID       id.TenantID     `json:"tenant_id" yaml:"tenant_id"`
	Name           string          `json:"name" yaml:"name"`
	IsDefault      bool            `json:"is_default" yaml:"default"`
	CompanyCodes   []string        `json:"company_codes" yaml:"company_codes"`
	Currencies     []string        `json:"currencies" yaml:"currencies"`
	PIIRules       json.RawMessage `json:"pii_rules,omitempty" yaml:"-"`
	ThresholdRules json.RawMessage `json:"threshold_rules,omitempty" yaml:"-"`
	UpdatedAt      time.Time       `json:"updated_at" yaml:"-"`
}

// Effect is what a violated rule does to the verdict.
type Effect string

const (
	EffectDeny            Effect = "DENY"
	EffectRequireApproval Effect = "REQUIRE_APPROVAL"
)

func (e Effect) IsValid() bool {
	return e == EffectDeny || e == EffectRequireApproval
}

// AnyCaseType matches every case type.
const AnyCaseType = "*"

// Rule is a guardrail rule owned by a profile, keyed by case and action type.
// The rule is violated when its Condition does not hold for the action.
type Rule struct {
	ID            id.RuleID    `json:"id" yaml:"id"`
	TenantID      id.TenantID  `json:"tenant_id" yaml:"-"`
	ProfileID     id.ProfileID `json:"profile_id" yaml:"-"`
	Name          string       `json:"name" yaml:"name"`
	CaseType      string       `json:"case_type" yaml:"case_type"`
	ActionType    string       `json:"action_type" yaml:"action_type"`
	Condition     Condition    `json:"condition" yaml:"condition"`
	Effect        Effect       `json:"effect" yaml:"effect"`
	ApprovalLevel int          `json:"approval_level" yaml:"approval_level"`
	Enabled       bool         `json:"enabled" yaml:"enabled"`
	Priority      int          `json:"priority" yaml:"priority"`
}

// Matches reports whether the rule applies to the case/action pair.
func (r Rule) Matches(caseType, actionType string) bool {
	if !r.Enabled || r.ActionType != actionType {
		return false
	}
	return r.CaseType == AnyCaseType || r.CaseType == caseType
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "rule name is required")
	}
	if r.ActionType == "" || r.CaseType == "" {
		return dErrors.New(dErrors.CodeValidation, "rule "+r.Name+": case_type and action_type are required")
	}
	if !r.Effect.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "rule "+r.Name+": unknown effect "+string(r.Effect))
	}
	if r.ApprovalLevel < 0 {
		return dErrors.New(dErrors.CodeValidation, "rule "+r.Name+": approval_level must not be negative")
	}
	if err := r.Condition.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "rule "+r.Name+": invalid condition")
	}
	return nil
}

// ConditionKind discriminates the Condition union.
type ConditionKind string

const (
	KindAmountCeiling     ConditionKind = "amount_ceiling"
	KindCurrencyAllowlist ConditionKind = "currency_allowlist"
	KindCompanyAllowlist  ConditionKind = "company_allowlist"
	KindAll               ConditionKind = "all"
	KindAny               ConditionKind = "any"
)

// Condition is a tagged union; Kind decides which fields are meaningful.
//
//	amount_ceiling      Max, optional Currency (rule only applies to that currency)
//	currency_allowlist  Values
//	company_allowlist   Values
//	all / any           Conditions
type Condition struct {
	Kind       ConditionKind `json:"kind" yaml:"kind"`
	Max        money.Amount  `json:"max,omitzero" yaml:"max,omitempty"`
	Currency   string        `json:"currency,omitempty" yaml:"currency,omitempty"`
	Values     []string      `json:"values,omitempty" yaml:"values,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

const maxConditionDepth = 8

func (c Condition) Validate() error {
	return c.validate(0)
}

func (c Condition) validate(depth int) error {
	if depth > maxConditionDepth {
		return dErrors.New(dErrors.CodeValidation, "condition nesting too deep")
	}
	switch c.Kind {
	case KindAmountCeiling:
		if c.Max.IsZero() {
			return dErrors.New(dErrors.CodeValidation, "amount_ceiling requires max")
		}
		if c.Max.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, "amount_ceiling max must not be negative")
		}
	case KindCurrencyAllowlist, KindCompanyAllowlist:
		if len(c.Values) == 0 {
			return dErrors.New(dErrors.CodeValidation, string(c.Kind)+" requires values")
		}
	case KindAll, KindAny:
		if len(c.Conditions) == 0 {
			return dErrors.New(dErrors.CodeValidation, string(c.Kind)+" requires conditions")
		}
		for _, child := range c.Conditions {
			if err := child.validate(depth + 1); err != nil {
				return err
			}
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown condition kind "+string(c.Kind))
	}
	return nil
}

// Normalized returns a copy with currencies and company codes in canonical
// form, matching how profile scopes and action payloads are stored.
func (c Condition) Normalized() Condition {
	out := c
	out.Currency = codes.Code(c.Currency)
	out.Values = codes.Normalize(c.Values)
	if len(c.Conditions) > 0 {
		out.Conditions = make([]Condition, len(c.Conditions))
		for i, child := range c.Conditions {
			out.Conditions[i] = child.Normalized()
		}
	}
	return out
}

// UnmarshalJSON decodes, normalizes and validates a condition document.
func (c *Condition) UnmarshalJSON(data []byte) error {
	type plain Condition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	cond := Condition(p).Normalized()
	if err := cond.Validate(); err != nil {
		return err
	}
	*c = cond
	return nil
}

// UnmarshalYAML is the seed-file counterpart of UnmarshalJSON.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	type plain Condition
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	cond := Condition(p).Normalized()
	if err := cond.Validate(); err != nil {
		return err
	}
	*c = cond
	return nil
}

// Changed is published on the bus when profile scope or rules change.
// A nil ProfileID means every profile of the tenant.
type Changed struct {
	TenantID  id.TenantID   `json:"tenant_id"`
	ProfileID *id.ProfileID `json:"profile_id,omitempty"`
}
