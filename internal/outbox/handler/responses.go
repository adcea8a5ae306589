package handler

import (
	"encoding/json"
	"time"

	"actiongate/internal/outbox/models"
)

// MessageResponse is the HTTP view of an outbox message.
type MessageResponse struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenantId"`
	TargetSystem     string          `json:"targetSystem"`
	EventType        string          `json:"eventType"`
	EventKey         string          `json:"eventKey"`
	Payload          json.RawMessage `json:"payload"`
	Status           string          `json:"status"`
	RetryCount       int             `json:"retryCount"`
	LastError        string          `json:"lastError,omitempty"`
	ResultMessage    string          `json:"resultMessage,omitempty"`
	NextAttemptAt    *time.Time      `json:"nextAttemptAt,omitempty"`
	DispatchedAt     *time.Time      `json:"dispatchedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	AlreadyProcessed bool            `json:"alreadyProcessed"`
}

func toMessageResponse(m *models.Message, alreadyProcessed bool) *MessageResponse {
	return &MessageResponse{
		ID:               m.ID.String(),
		TenantID:         m.TenantID.String(),
		TargetSystem:     m.TargetSystem,
		EventType:        m.EventType,
		EventKey:         m.EventKey,
		Payload:          m.Payload,
		Status:           string(m.Status),
		RetryCount:       m.RetryCount,
		LastError:        m.LastError,
		ResultMessage:    m.ResultMessage,
		NextAttemptAt:    m.NextAttemptAt,
		DispatchedAt:     m.DispatchedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		AlreadyProcessed: alreadyProcessed,
	}
}
