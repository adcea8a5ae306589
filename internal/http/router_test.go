package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/platform/middleware/internaltoken"
	"actiongate/pkg/testutil"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type pingRoutes struct{ path string }

func (p pingRoutes) Register(r chi.Router) {
	r.Get(p.path, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Deps{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator:     stubValidator{},
		InternalToken: "s3cret",
		Public:        []Registrar{pingRoutes{path: "/actions/ping"}},
		Internal:      []Registrar{pingRoutes{path: "/integration/ping"}},
		HealthChecks:  checks,
	})
}

func TestRouter(t *testing.T) {
	r := newTestRouter(nil)

	t.Run("public routes require a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/actions/ping"))
		testutil.AssertDomainError(t, rr, dErrors.CodeUnauthorized)
	})

	t.Run("internal routes require the service token", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/integration/ping"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		req := testutil.NewRequest(t, http.MethodGet, "/integration/ping")
		req.Header.Set(internaltoken.Header, "s3cret")
		rr = testutil.DoRequest(r, req)
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	body := testutil.UnmarshalResponse[map[string]any](t, rr)
	checks := (*body)["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["redis"])
}
