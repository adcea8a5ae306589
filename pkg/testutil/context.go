package testutil

import (
	"net/http"

	id "actiongate/pkg/domain"
	authmw "actiongate/pkg/platform/middleware/auth"
)

// WithIdentity attaches a verified identity to the request context, as the
// auth middleware does for a valid bearer token.
func WithIdentity(req *http.Request, tenantID id.TenantID, userID id.UserID) *http.Request {
	return req.WithContext(authmw.WithVerified(req.Context(), authmw.VerifiedIdentity{
		TenantID: tenantID,
		UserID:   userID,
	}))
}
