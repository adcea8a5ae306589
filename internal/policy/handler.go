package policy

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"actiongate/internal/platform/bus"
	"actiongate/internal/policy/models"
	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/requestcontext"
)

// ChangedRequest is the body of POST /internal/policy/changed, sent by the
// administration service after it writes a profile or rule.
type ChangedRequest struct {
	TenantID  string `json:"tenantId"`
	ProfileID string `json:"profileId,omitempty"`

	change models.Changed
}

func (r *ChangedRequest) Validate() error {
	tenantID, err := id.ParseTenantID(strings.TrimSpace(r.TenantID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "tenantId must be a valid id")
	}
	r.change = models.Changed{TenantID: tenantID}
	if p := strings.TrimSpace(r.ProfileID); p != "" {
		profileID, err := id.ParseProfileID(p)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "profileId must be a valid id")
		}
		r.change.ProfileID = &profileID
	}
	return nil
}

// ChangeHandler receives policy change notifications over HTTP, applies
// them locally and fans them out to the other replicas.
type ChangeHandler struct {
	local     *InvalidationHandler
	publisher bus.Publisher
	logger    *slog.Logger
}

func NewChangeHandler(local *InvalidationHandler, publisher bus.Publisher, logger *slog.Logger) *ChangeHandler {
	return &ChangeHandler{local: local, publisher: publisher, logger: logger}
}

// Register mounts the route. The caller applies the internal token middleware.
func (h *ChangeHandler) Register(r chi.Router) {
	r.Post("/internal/policy/changed", h.HandleChanged)
}

func (h *ChangeHandler) HandleChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ChangedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.local.Apply(req.change)
	if err := Notify(ctx, h.publisher, req.change); err != nil {
		h.logger.ErrorContext(ctx, "failed to broadcast policy change",
			"request_id", requestID,
			"tenant_id", req.change.TenantID.String(),
			"profile_id", profileString(req.change.ProfileID),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeExternalDependency, "policy change applied locally but not broadcast"))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"tenantId":  req.change.TenantID.String(),
		"profileId": profileString(req.change.ProfileID),
	})
}
