package handler

import (
	"encoding/json"
	"strings"

	"actiongate/internal/outbox/models"
	dErrors "actiongate/pkg/domain-errors"
)

// EnqueueRequest is the body of POST /integration/outbox.
type EnqueueRequest struct {
	TargetSystem string          `json:"targetSystem"`
	EventType    string          `json:"eventType"`
	EventKey     string          `json:"eventKey"`
	Payload      json.RawMessage `json:"payload"`
}

func (r *EnqueueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.TargetSystem = strings.TrimSpace(r.TargetSystem)
	r.EventType = strings.TrimSpace(r.EventType)
	r.EventKey = strings.TrimSpace(r.EventKey)
	if r.TargetSystem == "" {
		return dErrors.New(dErrors.CodeValidation, "targetSystem is required")
	}
	if r.EventType == "" {
		return dErrors.New(dErrors.CodeValidation, "eventType is required")
	}
	if r.EventKey == "" {
		return dErrors.New(dErrors.CodeValidation, "eventKey is required")
	}
	if len(r.EventKey) > 255 {
		return dErrors.New(dErrors.CodeValidation, "eventKey must be at most 255 characters")
	}
	return nil
}

// ResultRequest is the body of POST /integration/outbox/{id}/result.
type ResultRequest struct {
	Status        string `json:"status"`
	ResultMessage string `json:"resultMessage"`

	parsedStatus models.Status
}

func (r *ResultRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status := models.Status(strings.ToUpper(strings.TrimSpace(r.Status)))
	if status != models.StatusProcessed && status != models.StatusFailed {
		return dErrors.New(dErrors.CodeValidation, "status must be PROCESSED or FAILED")
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated status.
func (r *ResultRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}
