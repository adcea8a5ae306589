package handler

import (
	"strings"
	"time"

	"actiongate/internal/approval/models"
	"actiongate/internal/approval/service"
)

// DecisionResponse answers approve and reject. SessionID is the request id,
// the correlation key callers retry with.
type DecisionResponse struct {
	SessionID        string `json:"sessionId"`
	ActionID         string `json:"actionId"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
}

func toDecisionResponse(res *service.DecisionResult) *DecisionResponse {
	return &DecisionResponse{
		SessionID:        res.Request.ID.String(),
		ActionID:         res.Request.ActionID.String(),
		Status:           strings.ToLower(string(res.Request.Status)),
		Reason:           res.Request.Reason,
		AlreadyProcessed: res.AlreadyProcessed,
	}
}

type RequestResponse struct {
	RequestID     string     `json:"requestId"`
	ActionID      string     `json:"actionId"`
	Status        string     `json:"status"`
	RequiredLevel int        `json:"requiredLevel"`
	Reason        string     `json:"reason,omitempty"`
	DecidedBy     string     `json:"decidedBy,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

func toRequestResponse(r *models.Request) *RequestResponse {
	resp := &RequestResponse{
		RequestID:     r.ID.String(),
		ActionID:      r.ActionID.String(),
		Status:        string(r.Status),
		RequiredLevel: r.RequiredLevel,
		Reason:        r.Reason,
		DecidedAt:     r.DecidedAt,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
	if r.DecidedBy != nil {
		resp.DecidedBy = r.DecidedBy.String()
	}
	return resp
}
