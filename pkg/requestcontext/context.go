// Package requestcontext provides HTTP-independent context accessors for
// request-scoped tracing values.
//
// Only correlation metadata lives here (request ids, client address, user
// agent, request time). Tenant and user identity are never read from
// context by services; handlers pass them as explicit parameters.
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//	ctx = requestcontext.WithClientMetadata(ctx, ip, userAgent)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	clientIPKey         struct{}
	userAgentKey        struct{}
	requestIDKey        struct{}
	gatewayRequestIDKey struct{}
	requestTimeKey      struct{}
)

var (
	ContextKeyClientIP         = clientIPKey{}
	ContextKeyUserAgent        = userAgentKey{}
	ContextKeyRequestID        = requestIDKey{}
	ContextKeyGatewayRequestID = gatewayRequestIDKey{}
	ContextKeyRequestTime      = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GatewayRequestID retrieves the upstream API gateway correlation id.
func GatewayRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyGatewayRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithGatewayRequestID injects the upstream gateway correlation id.
func WithGatewayRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyGatewayRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
