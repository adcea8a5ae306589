// Package requesttime pins a single "now" per request so the action row,
// its audit events and the approval expiry all agree on the same instant.
package requesttime

import (
	"net/http"
	"time"

	"actiongate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
