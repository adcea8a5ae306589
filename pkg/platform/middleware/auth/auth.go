package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "actiongate/pkg/domain"
	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/httputil"
	request "actiongate/pkg/platform/middleware/request"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	TenantID string
	UserID   string
	JTI      string
}

// VerifiedIdentity is the tenant and user proven by the bearer credential.
type VerifiedIdentity struct {
	TenantID id.TenantID
	UserID   id.UserID
}

type contextKeyIdentity struct{}

// ContextKeyIdentity is exported for tests that inject an identity directly.
var ContextKeyIdentity = contextKeyIdentity{}

// Verified returns the identity placed on the context by RequireAuth.
// Handlers read it once and pass it to services explicitly.
func Verified(ctx context.Context) (VerifiedIdentity, bool) {
	v, ok := ctx.Value(ContextKeyIdentity).(VerifiedIdentity)
	return v, ok
}

// WithVerified injects a verified identity; used by tests.
func WithVerified(ctx context.Context, identity VerifiedIdentity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason, desc string, err error) {
	ctx := r.Context()
	logger.WarnContext(ctx, "unauthorized access - "+reason,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, desc))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, r, logger, "missing token", "Missing or invalid Authorization header", nil)
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w, r, logger, "invalid token", "Invalid or expired token", err)
				return
			}

			tenantID, err := id.ParseTenantID(claims.TenantID)
			if err != nil {
				unauthorized(w, r, logger, "malformed tenant claim", "Invalid token claims", err)
				return
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				unauthorized(w, r, logger, "malformed user claim", "Invalid token claims", err)
				return
			}

			ctx := WithVerified(r.Context(), VerifiedIdentity{TenantID: tenantID, UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
