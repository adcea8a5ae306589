package guardrail

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/money"
)

func ceilingRule(name string, maxAmount int64, currency string, effect models.Effect, level int) models.Rule {
	return models.Rule{
		ID:            id.RuleID(uuid.New()),
		Name:          name,
		CaseType:      models.AnyCaseType,
		ActionType:    "PAYMENT_BLOCK",
		Condition:     models.Condition{Kind: models.KindAmountCeiling, Max: money.FromInt(maxAmount), Currency: currency},
		Effect:        effect,
		ApprovalLevel: level,
		Enabled:       true,
	}
}

func TestEvaluate_AmountThreshold(t *testing.T) {
	rules := []models.Rule{ceilingRule("krw-10k", 10000, "KRW", models.EffectRequireApproval, 2)}

	above := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(15000), Currency: "KRW"}, false)
	assert.Equal(t, VerdictApprovalRequired, above.Verdict)
	assert.Equal(t, 2, above.RequiredApprovalLevel)
	assert.Equal(t, []string{"krw-10k"}, above.ViolatedRules)

	below := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(5000), Currency: "KRW"}, false)
	assert.Equal(t, VerdictAllowed, below.Verdict)
	assert.Empty(t, below.ViolatedRules)
	assert.Equal(t, 1, below.RulesEvaluated)

	atCeiling := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(10000), Currency: "KRW"}, false)
	assert.Equal(t, VerdictAllowed, atCeiling.Verdict)

	otherCurrency := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(15000), Currency: "USD"}, false)
	assert.Equal(t, VerdictAllowed, otherCurrency.Verdict, "ceiling scoped to KRW")
}

func TestEvaluate_MostRestrictiveWins(t *testing.T) {
	rules := []models.Rule{
		ceilingRule("needs-approval", 10000, "", models.EffectRequireApproval, 3),
		ceilingRule("hard-limit", 12000, "", models.EffectDeny, 0),
	}
	result := Evaluate(rules, "ANY", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(15000)}, false)
	assert.Equal(t, VerdictDenied, result.Verdict)
	assert.ElementsMatch(t, []string{"needs-approval", "hard-limit"}, result.ViolatedRules)
	assert.Zero(t, result.RequiredApprovalLevel)
	assert.False(t, result.Allowed())
}

func TestEvaluate_HighestApprovalLevel(t *testing.T) {
	rules := []models.Rule{
		ceilingRule("l1", 1000, "", models.EffectRequireApproval, 0),
		ceilingRule("l3", 2000, "", models.EffectRequireApproval, 3),
	}
	result := Evaluate(rules, "ANY", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(5000)}, false)
	assert.Equal(t, VerdictApprovalRequired, result.Verdict)
	assert.Equal(t, 3, result.RequiredApprovalLevel)
	assert.Equal(t, DefaultApprovalLevel, result.Violations[0].ApprovalLevel)
}

func TestEvaluate_UnconfiguredPair(t *testing.T) {
	rules := []models.Rule{ceilingRule("other", 1, "", models.EffectDeny, 0)}

	open := Evaluate(rules, "ANY", "CLOSE_CASE", Facts{}, false)
	assert.Equal(t, VerdictAllowed, open.Verdict)
	assert.True(t, open.NoRulesConfigured)

	closed := Evaluate(rules, "ANY", "CLOSE_CASE", Facts{}, true)
	assert.Equal(t, VerdictApprovalRequired, closed.Verdict)
	assert.Equal(t, []string{RuleNoRulesConfigured}, closed.ViolatedRules)
	assert.Equal(t, DefaultApprovalLevel, closed.RequiredApprovalLevel)
}

func TestEvaluate_DisabledAndCaseTypeFiltering(t *testing.T) {
	disabled := ceilingRule("disabled", 1, "", models.EffectDeny, 0)
	disabled.Enabled = false
	scoped := ceilingRule("bank-only", 1, "", models.EffectDeny, 0)
	scoped.CaseType = "BANK_CHANGE"

	result := Evaluate([]models.Rule{disabled, scoped}, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(100)}, false)
	assert.Equal(t, VerdictAllowed, result.Verdict)
	assert.Zero(t, result.RulesEvaluated)
}

func TestHolds(t *testing.T) {
	facts := Facts{Amount: money.FromInt(500), Currency: "KRW", CompanyCode: "1000"}

	cases := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"currency allowed", models.Condition{Kind: models.KindCurrencyAllowlist, Values: []string{"KRW", "USD"}}, true},
		{"currency not allowed", models.Condition{Kind: models.KindCurrencyAllowlist, Values: []string{"USD"}}, false},
		{"company allowed", models.Condition{Kind: models.KindCompanyAllowlist, Values: []string{"1000"}}, true},
		{"company not allowed", models.Condition{Kind: models.KindCompanyAllowlist, Values: []string{"2000"}}, false},
		{"all holds", models.Condition{Kind: models.KindAll, Conditions: []models.Condition{
			{Kind: models.KindCurrencyAllowlist, Values: []string{"KRW"}},
			{Kind: models.KindAmountCeiling, Max: money.FromInt(1000)},
		}}, true},
		{"all fails on one", models.Condition{Kind: models.KindAll, Conditions: []models.Condition{
			{Kind: models.KindCurrencyAllowlist, Values: []string{"KRW"}},
			{Kind: models.KindAmountCeiling, Max: money.FromInt(100)},
		}}, false},
		{"any holds on one", models.Condition{Kind: models.KindAny, Conditions: []models.Condition{
			{Kind: models.KindCompanyAllowlist, Values: []string{"9999"}},
			{Kind: models.KindAmountCeiling, Max: money.FromInt(1000)},
		}}, true},
		{"unknown kind", models.Condition{Kind: "regex"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Holds(tc.cond, facts))
		})
	}

	t.Run("absent facts are not applicable", func(t *testing.T) {
		assert.True(t, Holds(models.Condition{Kind: models.KindAmountCeiling, Max: money.FromInt(1)}, Facts{}))
		assert.True(t, Holds(models.Condition{Kind: models.KindCurrencyAllowlist, Values: []string{"USD"}}, Facts{}))
		assert.True(t, Holds(models.Condition{Kind: models.KindCompanyAllowlist, Values: []string{"1"}}, Facts{}))
	})
}

func TestEvaluate_CodesCompareCaseInsensitively(t *testing.T) {
	doc := `
name: krw ceiling
case_type: "*"
action_type: PAYMENT_BLOCK
effect: REQUIRE_APPROVAL
enabled: true
condition:
  kind: all
  conditions:
    - kind: amount_ceiling
      max: 10000
      currency: krw
    - kind: company_allowlist
      values: [kr01]
`
	var rule models.Rule
	require.NoError(t, yaml.Unmarshal([]byte(doc), &rule))
	require.NoError(t, rule.Validate())
	rules := []models.Rule{rule}

	over := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(15_000_000), Currency: "KRW", CompanyCode: "KR01"}, false)
	assert.Equal(t, VerdictApprovalRequired, over.Verdict)
	assert.Equal(t, []string{"krw ceiling"}, over.ViolatedRules)

	lowerFacts := Evaluate(rules, "DUPLICATE_INVOICE", "PAYMENT_BLOCK", Facts{Amount: money.FromInt(5000), Currency: "krw", CompanyCode: "kr01"}, false)
	assert.Equal(t, VerdictAllowed, lowerFacts.Verdict)
	assert.Equal(t, 1, lowerFacts.RulesEvaluated)
}
