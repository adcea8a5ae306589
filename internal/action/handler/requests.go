package handler

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
)

const (
	maxActionTypeLen = 64
	maxReasonLen     = 500
)

// ProposeRequest is the body of POST /actions/propose.
type ProposeRequest struct {
	CaseID     string          `json:"caseId"`
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload"`

	parsedCaseID id.CaseID
}

// Validate implements httputil.Validatable.
func (r *ProposeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ActionType = strings.ToUpper(strings.TrimSpace(r.ActionType))
	if r.ActionType == "" {
		return dErrors.New(dErrors.CodeValidation, "actionType is required")
	}
	if utf8.RuneCountInString(r.ActionType) > maxActionTypeLen {
		return dErrors.New(dErrors.CodeValidation, "actionType must be at most 64 characters")
	}
	caseID, err := id.ParseCaseID(strings.TrimSpace(r.CaseID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "caseId must be a valid id")
	}
	r.parsedCaseID = caseID
	return nil
}

func (r *ProposeRequest) ParsedCaseID() id.CaseID {
	return r.parsedCaseID
}

// SimulateRequest is the body of POST /actions/simulate. Only the case is
// required; problems with the action type or payload come back in the
// response's validationErrors.
type SimulateRequest struct {
	CaseID     string          `json:"caseId"`
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload"`

	parsedCaseID id.CaseID
}

func (r *SimulateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ActionType = strings.ToUpper(strings.TrimSpace(r.ActionType))
	caseID, err := id.ParseCaseID(strings.TrimSpace(r.CaseID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "caseId must be a valid id")
	}
	r.parsedCaseID = caseID
	return nil
}

func (r *SimulateRequest) ParsedCaseID() id.CaseID {
	return r.parsedCaseID
}

// CancelRequest is the optional body of POST /actions/{actionId}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRequest) Validate() error {
	if r == nil {
		return nil
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if utf8.RuneCountInString(r.Reason) > maxReasonLen {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}
