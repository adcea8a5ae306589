// Package audit exposes the audit trail of a resource to operators.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/requestcontext"
)

const TenantHeader = "X-Tenant-ID"

type Lister interface {
	ListByResource(ctx context.Context, tenantID id.TenantID, resourceType audit.ResourceType, resourceID string) ([]audit.Event, error)
}

var resourceTypes = map[string]audit.ResourceType{
	"action":           audit.ResourceAction,
	"approval_request": audit.ResourceApprovalRequest,
	"outbox_message":   audit.ResourceOutboxMessage,
	"case":             audit.ResourceCase,
}

type Handler struct {
	lister Lister
	logger *slog.Logger
}

func New(lister Lister, logger *slog.Logger) *Handler {
	return &Handler{lister: lister, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/{resourceType}/{resourceId}", h.HandleList)
}

type EventResponse struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	Category     string            `json:"category"`
	Type         string            `json:"type"`
	ResourceType string            `json:"resourceType"`
	ResourceID   string            `json:"resourceId"`
	ActorType    string            `json:"actorType"`
	ActorID      string            `json:"actorId,omitempty"`
	Channel      string            `json:"channel,omitempty"`
	Outcome      string            `json:"outcome"`
	Severity     string            `json:"severity"`
	Before       json.RawMessage   `json:"before,omitempty"`
	After        json.RawMessage   `json:"after,omitempty"`
	Diff         json.RawMessage   `json:"diff,omitempty"`
	Evidence     map[string]any    `json:"evidence,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	RequestID    string            `json:"requestId,omitempty"`
	TraceID      string            `json:"traceId,omitempty"`
}

type ListResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleList handles GET /audit/{resourceType}/{resourceId}. The resource
// type is matched case-insensitively, so ACTION and action both work.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verified, ok := auth.Verified(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if tenantID, err := id.ParseTenantID(r.Header.Get(TenantHeader)); err != nil || tenantID != verified.TenantID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeIdentityMismatch, "tenant header does not match credential"))
		return
	}
	resourceType, ok := resourceTypes[strings.ToLower(chi.URLParam(r, "resourceType"))]
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown resource type"))
		return
	}
	resourceID := chi.URLParam(r, "resourceId")

	events, err := h.lister.ListByResource(ctx, verified.TenantID, resourceType, resourceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", verified.TenantID.String(),
			"resource_type", resourceType,
			"resource_id", resourceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			ID:           e.ID.String(),
			CreatedAt:    e.CreatedAt,
			Category:     string(e.Category),
			Type:         string(e.Type),
			ResourceType: string(e.ResourceType),
			ResourceID:   e.ResourceID,
			ActorType:    string(e.ActorType),
			ActorID:      e.ActorID,
			Channel:      string(e.Channel),
			Outcome:      string(e.Outcome),
			Severity:     string(e.Severity),
			Before:       e.Before,
			After:        e.After,
			Diff:         e.Diff,
			Evidence:     e.Evidence,
			Tags:         e.Tags,
			RequestID:    e.RequestID,
			TraceID:      e.TraceID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
