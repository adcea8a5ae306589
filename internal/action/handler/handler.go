package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"actiongate/internal/action/models"
	"actiongate/internal/action/service"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/requestcontext"
)

// TenantHeader names the tenant the caller claims to act for. It must equal
// the tenant of the verified bearer token.
const TenantHeader = "X-Tenant-ID"

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Propose(ctx context.Context, cmd service.ProposeCommand) (*service.ProposeResult, error)
	Simulate(ctx context.Context, cmd service.SimulateCommand) (*service.SimulateResult, error)
	Get(ctx context.Context, tenantID id.TenantID, actionID id.ActionID) (*models.Action, error)
	Cancel(ctx context.Context, cmd service.CancelCommand) (*models.Action, error)
}

// Handler wires action endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts action endpoints. Callers wrap the router with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/actions/propose", h.HandlePropose)
	r.Post("/actions/simulate", h.HandleSimulate)
	r.Get("/actions/{actionId}", h.HandleGet)
	r.Post("/actions/{actionId}/cancel", h.HandleCancel)
}

// HandlePropose handles POST /actions/propose.
func (h *Handler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProposeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Propose(ctx, service.ProposeCommand{
		TenantID:   caller.TenantID,
		ProposedBy: caller.UserID,
		CaseID:     req.ParsedCaseID(),
		ActionType: req.ActionType,
		Payload:    req.Payload,
	})
	if err != nil {
		h.logFailure(ctx, "propose failed", requestID, caller, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "propose handled",
		"request_id", requestID,
		"tenant_id", caller.TenantID.String(),
		"action_id", res.Action.ID.String(),
		"status", res.Action.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toProposeResponse(res))
}

// HandleSimulate handles POST /actions/simulate.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SimulateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Simulate(ctx, service.SimulateCommand{
		TenantID:   caller.TenantID,
		CaseID:     req.ParsedCaseID(),
		ActionType: req.ActionType,
		Payload:    req.Payload,
	})
	if err != nil {
		h.logFailure(ctx, "simulate failed", requestID, caller, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSimulateResponse(res))
}

// HandleGet handles GET /actions/{actionId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	actionID, err := id.ParseActionID(chi.URLParam(r, "actionId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), caller.TenantID, actionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActionResponse(a))
}

// HandleCancel handles POST /actions/{actionId}/cancel. The body is optional.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.identity(w, r)
	if !ok {
		return
	}
	actionID, err := id.ParseActionID(chi.URLParam(r, "actionId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req := &CancelRequest{}
	if r.ContentLength != 0 {
		req, ok = httputil.DecodeAndPrepare[CancelRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}

	a, err := h.service.Cancel(ctx, service.CancelCommand{
		TenantID: caller.TenantID,
		ActionID: actionID,
		ActorID:  caller.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		h.logFailure(ctx, "cancel failed", requestID, caller, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActionResponse(a))
}

// identity returns the verified caller after checking the tenant header
// against the token. Services receive the verified values only.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.VerifiedIdentity, bool) {
	ctx := r.Context()
	verified, ok := auth.Verified(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "verified identity missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return auth.VerifiedIdentity{}, false
	}
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Tenant-ID header is required"))
		return auth.VerifiedIdentity{}, false
	}
	tenantID, err := id.ParseTenantID(raw)
	if err != nil || tenantID != verified.TenantID {
		h.logger.WarnContext(ctx, "tenant header does not match token",
			"request_id", requestcontext.RequestID(ctx),
			"header_tenant_id", raw,
			"token_tenant_id", verified.TenantID.String(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeIdentityMismatch, "tenant header does not match credential"))
		return auth.VerifiedIdentity{}, false
	}
	return verified, true
}

func (h *Handler) logFailure(ctx context.Context, msg, requestID string, caller auth.VerifiedIdentity, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeExternalDependency {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestID,
		"tenant_id", caller.TenantID.String(),
		"user_id", caller.UserID.String(),
		"error", err,
	)
}
