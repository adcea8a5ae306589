// Package guardrail decides whether a proposed action is allowed, needs a
// human approval, or is denied.
package guardrail

import (
	"slices"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/money"
	"actiongate/pkg/platform/codes"
)

// Verdict is the outcome of an evaluation.
type Verdict string

const (
	VerdictAllowed          Verdict = "ALLOWED"
	VerdictApprovalRequired Verdict = "APPROVAL_REQUIRED"
	VerdictDenied           Verdict = "DENIED"
)

// Pseudo rule names reported alongside configured rules.
const (
	RuleOutOfScope        = "OUT_OF_SCOPE"
	RuleNoRulesConfigured = "NO_RULES_CONFIGURED"
)

// DefaultApprovalLevel applies when an approval-requiring rule names none.
const DefaultApprovalLevel = 1

// Facts are the action attributes conditions are evaluated against. Zero
// values are "not supplied".
type Facts struct {
	Amount      money.Amount
	Currency    string
	CompanyCode string
}

// Violation is one rule whose condition did not hold.
type Violation struct {
	RuleID        id.RuleID     `json:"rule_id"`
	Name          string        `json:"name"`
	Effect        models.Effect `json:"effect"`
	ApprovalLevel int           `json:"approval_level,omitempty"`
}

// Result is the verdict with the evidence that produced it.
type Result struct {
	Verdict               Verdict      `json:"verdict"`
	RequiredApprovalLevel int          `json:"required_approval_level"`
	ViolatedRules         []string     `json:"violated_rules"`
	Violations            []Violation  `json:"violations,omitempty"`
	ProfileID             id.ProfileID `json:"profile_id"`
	OutOfScope            bool         `json:"out_of_scope,omitempty"`
	RulesEvaluated        int          `json:"rules_evaluated"`
	// NoRulesConfigured marks a verdict taken by the unconfigured-pair default.
	NoRulesConfigured bool `json:"no_rules_configured,omitempty"`
}

func (r Result) Allowed() bool { return r.Verdict == VerdictAllowed }

func (r Result) RequiresApproval() bool { return r.Verdict == VerdictApprovalRequired }

// Evaluate runs rules matching (caseType, actionType) against facts.
// A DENY violation beats any approval requirement; the highest approval level
// among violated approval rules is reported. When no rule matches, the verdict
// is ALLOWED unless failClosed is set.
func Evaluate(rules []models.Rule, caseType, actionType string, facts Facts, failClosed bool) Result {
	facts.Currency = codes.Code(facts.Currency)
	facts.CompanyCode = codes.Code(facts.CompanyCode)
	result := Result{Verdict: VerdictAllowed, ViolatedRules: []string{}}

	denied := false
	needsApproval := false
	for _, rule := range rules {
		if !rule.Matches(caseType, actionType) {
			continue
		}
		result.RulesEvaluated++
		if Holds(rule.Condition, facts) {
			continue
		}
		v := Violation{RuleID: rule.ID, Name: rule.Name, Effect: rule.Effect}
		switch rule.Effect {
		case models.EffectDeny:
			denied = true
		case models.EffectRequireApproval:
			needsApproval = true
			v.ApprovalLevel = max(rule.ApprovalLevel, DefaultApprovalLevel)
			result.RequiredApprovalLevel = max(result.RequiredApprovalLevel, v.ApprovalLevel)
		}
		result.Violations = append(result.Violations, v)
		result.ViolatedRules = append(result.ViolatedRules, rule.Name)
	}

	switch {
	case denied:
		result.Verdict = VerdictDenied
		result.RequiredApprovalLevel = 0
	case needsApproval:
		result.Verdict = VerdictApprovalRequired
	case result.RulesEvaluated == 0:
		result.NoRulesConfigured = true
		if failClosed {
			result.Verdict = VerdictApprovalRequired
			result.RequiredApprovalLevel = DefaultApprovalLevel
			result.ViolatedRules = append(result.ViolatedRules, RuleNoRulesConfigured)
		}
	}
	return result
}

// OutOfScopeResult is the short-circuit verdict for a scope violation.
func OutOfScopeResult(profileID id.ProfileID) Result {
	return Result{
		Verdict:       VerdictDenied,
		ViolatedRules: []string{RuleOutOfScope},
		ProfileID:     profileID,
		OutOfScope:    true,
	}
}

// Holds reports whether the action satisfies the condition. A condition on a
// fact that was not supplied is not applicable and holds.
func Holds(c models.Condition, f Facts) bool {
	switch c.Kind {
	case models.KindAmountCeiling:
		if f.Amount.IsZero() {
			return true
		}
		if c.Currency != "" && f.Currency != "" && c.Currency != f.Currency {
			return true
		}
		return f.Amount.Cmp(c.Max) <= 0
	case models.KindCurrencyAllowlist:
		return f.Currency == "" || slices.Contains(c.Values, f.Currency)
	case models.KindCompanyAllowlist:
		return f.CompanyCode == "" || slices.Contains(c.Values, f.CompanyCode)
	case models.KindAll:
		for _, child := range c.Conditions {
			if !Holds(child, f) {
				return false
			}
		}
		return true
	case models.KindAny:
		for _, child := range c.Conditions {
			if Holds(child, f) {
				return true
			}
		}
		return false
	default:
		// unknown kinds never pass validation; treat as violated
		return false
	}
}
