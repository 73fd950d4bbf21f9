package api

import "context"

// contextKey is a private type to prevent context key collisions across packages
type contextKey string

const (
	// ContextKeyRequestID stores the request identifier (string)
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyCSRFToken stores the CSRF token bound to the request (string)
	ContextKeyCSRFToken contextKey = "csrf_token"
)

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID returns the request ID stored in ctx
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyRequestID).(string)
	return id, ok && id != ""
}

// GetRequestIDOrDefault returns the request ID or "unknown"
func GetRequestIDOrDefault(ctx context.Context) string {
	if id, ok := GetRequestID(ctx); ok {
		return id
	}
	return "unknown"
}
