package core

import "context"

type contextKey string

const requestIDKey contextKey = "request-id"

// WithRequestID returns a new context carrying the inbound request ID, so
// log lines written below the HTTP layer can be correlated with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
