// Package handler exposes human approval decisions over HTTP. The caller
// names itself in X-Tenant-ID and X-User-ID; the service compares both with
// the verified bearer credential.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"actiongate/internal/approval/models"
	"actiongate/internal/approval/service"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

type Service interface {
	Approve(ctx context.Context, cmd service.DecideCommand) (*service.DecisionResult, error)
	Reject(ctx context.Context, cmd service.DecideCommand) (*service.DecisionResult, error)
	Get(ctx context.Context, tenantID id.TenantID, requestID id.ApprovalRequestID) (*models.Request, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts approval routes. Callers wrap the router with RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/approvals/approve/{requestId}", h.HandleApprove)
	r.Post("/approvals/reject/{requestId}", h.HandleReject)
	r.Get("/approvals/{requestId}", h.HandleGet)
}

// HandleApprove handles POST /approvals/approve/{requestId}.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, "approve", h.service.Approve)
}

// HandleReject handles POST /approvals/reject/{requestId}.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, "reject", h.service.Reject)
}

type decideFunc func(ctx context.Context, cmd service.DecideCommand) (*service.DecisionResult, error)

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, op string, decide decideFunc) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	verified, ok := h.verified(w, r)
	if !ok {
		return
	}
	approvalID, err := id.ParseApprovalRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	callerTenant, callerUser, ok := h.callerHeaders(w, r)
	if !ok {
		return
	}
	req := &DecisionRequest{}
	if r.ContentLength != 0 {
		req, ok = httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}
	if req.UserID != "" && req.UserID != callerUser.String() {
		// the body names a different user than the header; treat as a forged claim
		callerUser = id.UserID{}
	}

	res, err := decide(ctx, service.DecideCommand{
		RequestID:        approvalID,
		CallerTenantID:   callerTenant,
		CallerUserID:     callerUser,
		VerifiedTenantID: verified.TenantID,
		VerifiedUserID:   verified.UserID,
		Reason:           req.Reason,
	})
	if err != nil {
		level := slog.LevelWarn
		if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeExternalDependency {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, op+" failed",
			"request_id", requestID,
			"approval_request_id", approvalID.String(),
			"tenant_id", verified.TenantID.String(),
			"user_id", verified.UserID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, op+" handled",
		"request_id", requestID,
		"approval_request_id", approvalID.String(),
		"status", res.Request.Status,
		"already_processed", res.AlreadyProcessed,
	)
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(res))
}

// HandleGet handles GET /approvals/{requestId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	verified, ok := h.verified(w, r)
	if !ok {
		return
	}
	raw := r.Header.Get(TenantHeader)
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Tenant-ID header is required"))
		return
	}
	if tenantID, err := id.ParseTenantID(raw); err != nil || tenantID != verified.TenantID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeIdentityMismatch, "tenant header does not match credential"))
		return
	}
	approvalID, err := id.ParseApprovalRequestID(chi.URLParam(r, "requestId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), verified.TenantID, approvalID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) verified(w http.ResponseWriter, r *http.Request) (auth.VerifiedIdentity, bool) {
	verified, ok := auth.Verified(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "verified identity missing from context despite auth middleware")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return auth.VerifiedIdentity{}, false
	}
	return verified, true
}

// callerHeaders reads the claimed identity. Unparseable values become nil
// ids, which never match a verified identity.
func (h *Handler) callerHeaders(w http.ResponseWriter, r *http.Request) (id.TenantID, id.UserID, bool) {
	rawTenant, rawUser := r.Header.Get(TenantHeader), r.Header.Get(UserHeader)
	if rawTenant == "" || rawUser == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Tenant-ID and X-User-ID headers are required"))
		return id.TenantID{}, id.UserID{}, false
	}
	tenantID, _ := id.ParseTenantID(rawTenant)
	userID, _ := id.ParseUserID(rawUser)
	return tenantID, userID, true
}
