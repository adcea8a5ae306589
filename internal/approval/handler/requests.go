package handler

import (
	"strings"
	"unicode/utf8"

	dErrors "actiongate/pkg/domain-errors"
)

// DecisionRequest is the body of approve and reject. UserID, when present,
// must equal the X-User-ID header.
type DecisionRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

func (r *DecisionRequest) Validate() error {
	if r == nil {
		return nil
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.Reason = strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}
