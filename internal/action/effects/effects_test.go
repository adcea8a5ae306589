package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actiongate/internal/action/models"
	casemodels "actiongate/internal/cases/models"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		BankDetailLock, CloseCase, InvoiceHold, MarkDuplicate, PaymentBlock, PaymentRelease,
	}, Types())

	_, ok := Lookup("WIRE_MONEY")
	assert.False(t, ok)
}

func TestPaymentBlockAndRelease(t *testing.T) {
	block, _ := Lookup(PaymentBlock)
	release, _ := Lookup(PaymentRelease)
	state := casemodels.State{KeyPaymentBlocked: false, "vendor": "ACME"}

	blocked, err := block.Apply(models.Params{Reason: "duplicate"}, state)
	require.NoError(t, err)
	assert.True(t, blocked.Bool(KeyPaymentBlocked))
	assert.Equal(t, "duplicate", blocked[KeyBlockReason])
	assert.False(t, state.Bool(KeyPaymentBlocked), "input state untouched")

	_, err = block.Apply(models.Params{}, blocked)
	assert.ErrorIs(t, err, ErrAlreadyBlocked)

	released, err := release.Apply(models.Params{}, blocked)
	require.NoError(t, err)
	assert.False(t, released.Bool(KeyPaymentBlocked))
	assert.NotContains(t, released, KeyBlockReason)

	_, err = release.Apply(models.Params{}, released)
	assert.ErrorIs(t, err, ErrNotBlocked)
}

func TestPreview(t *testing.T) {
	dup, _ := Lookup(MarkDuplicate)

	after, problems := Preview(dup, models.Params{}, casemodels.State{})
	assert.Nil(t, after)
	assert.Equal(t, []string{"duplicateOf is required"}, problems)

	after, problems = Preview(dup, models.Params{DuplicateOf: "INV-1"}, casemodels.State{})
	assert.Empty(t, problems)
	assert.Equal(t, "INV-1", after[KeyDuplicateOf])

	closeCase, _ := Lookup(CloseCase)
	_, problems = Preview(closeCase, models.Params{}, casemodels.State{KeyCaseStatus: "CLOSED"})
	assert.Equal(t, []string{ErrCaseClosed.Error()}, problems)
}

func TestDiff(t *testing.T) {
	before := casemodels.State{"a": 1.0, "b": "x", "gone": true}
	after := casemodels.State{"a": 1.0, "b": "y", "new": false}

	diff := Diff(before, after)
	assert.Equal(t, map[string]Change{
		"b":    {Before: "x", After: "y"},
		"new":  {Before: nil, After: false},
		"gone": {Before: true, After: nil},
	}, diff)
	assert.Equal(t, []string{"b", "gone", "new"}, ChangedFields(diff))
}
