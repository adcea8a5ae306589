// Package handler exposes the integration outbox to internal callers. The
// routes sit behind the internal token; the tenant comes from X-Tenant-ID.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"actiongate/internal/outbox/models"
	"actiongate/internal/outbox/service"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	audit "actiongate/pkg/platform/audit"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/requestcontext"
)

// TenantHeader carries the calling tenant on internal routes.
const TenantHeader = "X-Tenant-ID"

const internalActorID = "integration-api"

type Service interface {
	Enqueue(ctx context.Context, in service.EnqueueInput) (*models.Message, error)
	UpdateResult(ctx context.Context, in service.ResultInput) (*service.ResultOutcome, error)
	Get(ctx context.Context, tenantID id.TenantID, outboxID id.OutboxID) (*models.Message, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the outbox routes. The caller applies the internal token
// middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/integration/outbox", h.HandleEnqueue)
	r.Post("/integration/outbox/{id}/result", h.HandleResult)
	r.Get("/integration/outbox/{id}", h.HandleGet)
}

// HandleEnqueue handles POST /integration/outbox.
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EnqueueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.Enqueue(ctx, service.EnqueueInput{
		TenantID:     tenantID,
		TargetSystem: req.TargetSystem,
		EventType:    req.EventType,
		EventKey:     req.EventKey,
		Payload:      req.Payload,
		Actor:        internalActor(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "outbox enqueue failed",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toMessageResponse(m, false))
}

// HandleResult handles POST /integration/outbox/{id}/result.
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	outboxID, err := id.ParseOutboxID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResultRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.UpdateResult(ctx, service.ResultInput{
		TenantID:      tenantID,
		OutboxID:      outboxID,
		Status:        req.ParsedStatus(),
		ResultMessage: req.ResultMessage,
		Actor:         internalActor(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "outbox result rejected",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"outbox_id", outboxID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMessageResponse(outcome.Message, outcome.AlreadyProcessed))
}

// HandleGet handles GET /integration/outbox/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	outboxID, err := id.ParseOutboxID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Get(r.Context(), tenantID, outboxID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMessageResponse(m, false))
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Tenant-ID header is required"))
		return id.TenantID{}, false
	}
	tenantID, err := id.ParseTenantID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, false
	}
	return tenantID, true
}

func internalActor() service.Actor {
	return service.Actor{Type: audit.ActorSystem, ID: internalActorID, Channel: audit.ChannelInternal}
}
