package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	casestore "actiongate/internal/cases/store"
	"actiongate/internal/policy/models"
	policystore "actiongate/internal/policy/store"
	id "actiongate/pkg/domain"
)

func TestApplySeedExample(t *testing.T) {
	doc, err := loadSeed("../../configs/policy-seed.example.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Tenants, 1)

	policies := policystore.NewInMemory()
	cases := casestore.NewInMemory()
	ctx := context.Background()
	require.NoError(t, applySeed(ctx, doc, policies, cases))

	tenantID := doc.Tenants[0].ID
	profile, err := policies.DefaultProfile(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "ap-operations", profile.Name)
	assert.Equal(t, tenantID, profile.TenantID)
	assert.Equal(t, []string{"KR01", "KR02"}, profile.CompanyCodes)

	rules, err := policies.ListRules(ctx, tenantID, profile.ID)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "releases only in KRW", rules[0].Name, "highest priority first")
	ceiling := rules[2]
	assert.Equal(t, models.EffectRequireApproval, ceiling.Effect)
	assert.Equal(t, models.KindAmountCeiling, ceiling.Condition.Kind)
	assert.Equal(t, "10000", ceiling.Condition.Max.String())
	assert.Equal(t, profile.ID, ceiling.ProfileID)

	currencies, err := policies.ActiveCurrencies(ctx, tenantID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"KRW", "USD"}, currencies)

	caseID, err := id.ParseCaseID("9c8b7a60-1d2e-4f3a-b5c6-d7e8f9a0b101")
	require.NoError(t, err)
	c, err := cases.Get(ctx, tenantID, caseID)
	require.NoError(t, err)
	assert.Equal(t, "DUPLICATE_INVOICE", c.CaseType)
	assert.Equal(t, "INV-2024-0042", c.State.String("invoice_id"))
}

func TestApplySeedRejectsInvalidRule(t *testing.T) {
	tenantID, err := id.ParseTenantID("0d5f6c4e-8a57-4c1e-9d0b-2f1c6a3b7e01")
	require.NoError(t, err)
	doc := &seedFile{Tenants: []seedTenant{{
		ID: tenantID,
		Profiles: []seedProfile{{
			Profile: models.Profile{Name: "broken", IsDefault: true},
			Rules:   []models.Rule{{Name: "no effect", CaseType: "*", ActionType: "PAYMENT_BLOCK"}},
		}},
	}}}

	err = applySeed(context.Background(), doc, policystore.NewInMemory(), casestore.NewInMemory())
	assert.ErrorContains(t, err, "no effect")
}
