// Package effects computes what an action does to its case. Effects are pure:
// they read the current case state and return the next one. Persisting the
// result is the lifecycle's job.
package effects

import (
	"errors"
	"reflect"
	"slices"

	"actiongate/internal/action/models"
	casemodels "actiongate/internal/cases/models"
)

// Action types with a registered effect.
const (
	PaymentBlock   = "PAYMENT_BLOCK"
	PaymentRelease = "PAYMENT_RELEASE"
	InvoiceHold    = "INVOICE_HOLD"
	BankDetailLock = "BANK_DETAIL_LOCK"
	MarkDuplicate  = "MARK_DUPLICATE"
	CloseCase      = "CLOSE_CASE"
)

// Case state keys written by effects.
const (
	KeyPaymentBlocked    = "payment_blocked"
	KeyBlockReason       = "block_reason"
	KeyInvoiceHold       = "invoice_hold"
	KeyHoldReason        = "hold_reason"
	KeyBankDetailsLocked = "bank_details_locked"
	KeyDuplicateOf       = "duplicate_of"
	KeyCaseStatus        = "status"
)

const caseClosed = "CLOSED"

var (
	ErrAlreadyBlocked = errors.New("payment is already blocked")
	ErrNotBlocked     = errors.New("payment is not blocked")
	ErrAlreadyHeld    = errors.New("invoice is already on hold")
	ErrAlreadyLocked  = errors.New("bank details are already locked")
	ErrCaseClosed     = errors.New("case is closed")
)

// Effect is the behavior of one action type.
type Effect struct {
	Type string
	// Validate reports payload problems independent of the case state.
	Validate func(p models.Params) []string
	// Apply returns the case state after the action.
	Apply func(p models.Params, state casemodels.State) (casemodels.State, error)
}

var registry = map[string]Effect{
	PaymentBlock: {
		Type: PaymentBlock,
		Apply: func(p models.Params, s casemodels.State) (casemodels.State, error) {
			if s.Bool(KeyPaymentBlocked) {
				return nil, ErrAlreadyBlocked
			}
			next := s.Clone()
			next[KeyPaymentBlocked] = true
			if p.Reason != "" {
				next[KeyBlockReason] = p.Reason
			}
			return next, nil
		},
	},
	PaymentRelease: {
		Type: PaymentRelease,
		Apply: func(_ models.Params, s casemodels.State) (casemodels.State, error) {
			if !s.Bool(KeyPaymentBlocked) {
				return nil, ErrNotBlocked
			}
			next := s.Clone()
			next[KeyPaymentBlocked] = false
			delete(next, KeyBlockReason)
			return next, nil
		},
	},
	InvoiceHold: {
		Type: InvoiceHold,
		Apply: func(p models.Params, s casemodels.State) (casemodels.State, error) {
			if s.Bool(KeyInvoiceHold) {
				return nil, ErrAlreadyHeld
			}
			next := s.Clone()
			next[KeyInvoiceHold] = true
			if p.Reason != "" {
				next[KeyHoldReason] = p.Reason
			}
			return next, nil
		},
	},
	BankDetailLock: {
		Type: BankDetailLock,
		Apply: func(_ models.Params, s casemodels.State) (casemodels.State, error) {
			if s.Bool(KeyBankDetailsLocked) {
				return nil, ErrAlreadyLocked
			}
			next := s.Clone()
			next[KeyBankDetailsLocked] = true
			return next, nil
		},
	},
	MarkDuplicate: {
		Type: MarkDuplicate,
		Validate: func(p models.Params) []string {
			if p.DuplicateOf == "" {
				return []string{"duplicateOf is required"}
			}
			return nil
		},
		Apply: func(p models.Params, s casemodels.State) (casemodels.State, error) {
			next := s.Clone()
			next[KeyDuplicateOf] = p.DuplicateOf
			return next, nil
		},
	},
	CloseCase: {
		Type: CloseCase,
		Apply: func(p models.Params, s casemodels.State) (casemodels.State, error) {
			if s.String(KeyCaseStatus) == caseClosed {
				return nil, ErrCaseClosed
			}
			next := s.Clone()
			next[KeyCaseStatus] = caseClosed
			return next, nil
		},
	},
}

// Lookup returns the effect registered for actionType.
func Lookup(actionType string) (Effect, bool) {
	e, ok := registry[actionType]
	return e, ok
}

// Types lists the registered action types in stable order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Preview validates p and, when valid, applies the effect to state. Problems
// come back as messages instead of errors so callers can show all of them.
func Preview(e Effect, p models.Params, state casemodels.State) (casemodels.State, []string) {
	var problems []string
	if e.Validate != nil {
		problems = append(problems, e.Validate(p)...)
	}
	if len(problems) > 0 {
		return nil, problems
	}
	after, err := e.Apply(p, state)
	if err != nil {
		return nil, []string{err.Error()}
	}
	return after, nil
}

// Change is one field's before and after value.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff lists the keys whose values differ between before and after. Keys
// removed by the effect show an After of nil.
func Diff(before, after casemodels.State) map[string]Change {
	out := make(map[string]Change)
	for k, a := range after {
		b, ok := before[k]
		if !ok || !reflect.DeepEqual(a, b) {
			out[k] = Change{Before: b, After: a}
		}
	}
	for k, b := range before {
		if _, ok := after[k]; !ok {
			out[k] = Change{Before: b}
		}
	}
	return out
}

// ChangedFields returns the sorted keys of a diff.
func ChangedFields(diff map[string]Change) []string {
	fields := make([]string, 0, len(diff))
	for k := range diff {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}
