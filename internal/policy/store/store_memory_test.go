package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	"actiongate/pkg/platform/sentinel"
)

func TestInMemory_DefaultProfile(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	tenantID := id.TenantID(uuid.New())

	_, err := s.DefaultProfile(ctx, tenantID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	first := models.Profile{ID: id.ProfileID(uuid.New()), TenantID: tenantID, Name: "first", IsDefault: true}
	second := models.Profile{ID: id.ProfileID(uuid.New()), TenantID: tenantID, Name: "second", IsDefault: true}
	require.NoError(t, s.PutProfile(ctx, first))
	require.NoError(t, s.PutProfile(ctx, second))

	got, err := s.DefaultProfile(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name, "latest default wins")

	old, err := s.Profile(ctx, tenantID, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsDefault)
}

func TestInMemory_ProfileIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	p := models.Profile{ID: id.ProfileID(uuid.New()), TenantID: id.TenantID(uuid.New()), Name: "p"}
	require.NoError(t, s.PutProfile(ctx, p))

	_, err := s.Profile(ctx, id.TenantID(uuid.New()), p.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemory_ListRulesOrderedByPriority(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	tenantID := id.TenantID(uuid.New())
	profileID := id.ProfileID(uuid.New())

	low := models.Rule{ID: id.RuleID(uuid.New()), TenantID: tenantID, ProfileID: profileID, Name: "low", Priority: 1}
	high := models.Rule{ID: id.RuleID(uuid.New()), TenantID: tenantID, ProfileID: profileID, Name: "high", Priority: 10}
	require.NoError(t, s.PutRule(ctx, low))
	require.NoError(t, s.PutRule(ctx, high))

	rules, err := s.ListRules(ctx, tenantID, profileID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].Name)

	low.Name = "low-renamed"
	require.NoError(t, s.PutRule(ctx, low))
	rules, err = s.ListRules(ctx, tenantID, profileID)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
	assert.Equal(t, "low-renamed", rules[1].Name)
}

func TestInMemory_CodeTableIsCopied(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	tenantID := id.TenantID(uuid.New())
	codes := []string{"1000", "2000"}
	require.NoError(t, s.SetCodeTable(ctx, tenantID, codes, []string{"KRW"}))

	codes[0] = "mutated"
	got, err := s.ActiveCompanyCodes(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000", "2000"}, got)
}
