// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the gateway must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SessionKey contains *session.Manager for the current request's session
	// Set by: middleware.SessionMiddleware (pkg/middleware/session.go)
	// Required by: guard middleware, gateway handlers, proxy
	SessionKey Key = "session_manager"

	// TenantKey contains tenant.Context resolved for the request path
	// Set by: middleware.SessionMiddleware after tenant resolution
	// Required by: guard middleware, proxy scope wiring
	TenantKey Key = "tenant_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, access logs
	RequestIDKey Key = "request_id"

	// SessionIDKey contains the gateway session cookie value
	// Set by: middleware.SessionMiddleware
	// Used by: Logger, per-session credential stores
	SessionIDKey Key = "session_id"

	// LoggerKey contains *observability.Logger
	// Set by: logging middleware
	// Used by: Handlers that need structured logging with request context
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithSession adds the session manager to the context
func WithSession(ctx context.Context, manager interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, manager)
}

// WithTenant adds the resolved tenant context to the context
func WithTenant(ctx context.Context, tenantCtx interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenantCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSessionID adds the gateway session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSessionID retrieves the gateway session ID from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
