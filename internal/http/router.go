// Package httpapi assembles the HTTP surface: public routes behind bearer
// authentication, internal routes behind the shared service token.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"actiongate/internal/platform/metrics"
	"actiongate/pkg/platform/httputil"
	"actiongate/pkg/platform/middleware/auth"
	"actiongate/pkg/platform/middleware/internaltoken"
	"actiongate/pkg/platform/middleware/metadata"
	request "actiongate/pkg/platform/middleware/request"
	"actiongate/pkg/platform/middleware/requesttime"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Validator     auth.JWTValidator
	InternalToken string

	// Public routes, mounted behind RequireAuth.
	Public []Registrar
	// Internal routes, mounted behind the internal token.
	Internal []Registrar

	HealthChecks map[string]HealthCheck
}

const healthTimeout = 2 * time.Second

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", health(d.HealthChecks))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Validator, d.Logger))
		for _, reg := range d.Public {
			reg.Register(r)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(internaltoken.RequireInternalToken(d.InternalToken, d.Logger))
		for _, reg := range d.Internal {
			reg.Register(r)
		}
	})

	return otelhttp.NewHandler(r, "actiongate",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": result,
		})
	}
}
