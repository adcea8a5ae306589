package request

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"actiongate/pkg/requestcontext"
)

const (
	HeaderRequestID        = "X-Request-ID"
	HeaderGatewayRequestID = "X-Gateway-Request-ID"
)

// inbound ids are echoed into logs and audit rows, so only plain tokens pass.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID assigns a request id (reusing a well-formed inbound X-Request-ID),
// echoes it on the response and records the gateway correlation id if present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(reqID) {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		if gw := r.Header.Get(HeaderGatewayRequestID); validRequestID.MatchString(gw) {
			ctx = requestcontext.WithGatewayRequestID(ctx, gw)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id assigned by RequestID.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
