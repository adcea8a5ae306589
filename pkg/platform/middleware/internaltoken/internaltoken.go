// Package internaltoken guards service-to-service endpoints (the
// integration outbox surface) with a shared static token.
package internaltoken

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "actiongate/pkg/domain-errors"
	"actiongate/pkg/platform/httputil"
	request "actiongate/pkg/platform/middleware/request"
)

const Header = "X-Internal-Token"

func RequireInternalToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(Header)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "internal token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "internal token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
