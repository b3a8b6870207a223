package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the key type for request-scoped values.
type ContextKey string

const (
	// UserUPNContextKey carries the normalized user principal name the auth
	// middleware resolved for the request.
	UserUPNContextKey ContextKey = "userUPN"

	// TraceIDKey carries the per-request trace ID used to correlate logs
	// with error responses.
	TraceIDKey ContextKey = "traceID"
)

// SetTraceID attaches a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, uuid.NewString())
}

// GetTraceID retrieves the trace ID from the context, or "" when absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithUserUPN attaches the resolved user principal name to the context.
func WithUserUPN(ctx context.Context, upn string) context.Context {
	return context.WithValue(ctx, UserUPNContextKey, upn)
}

// GetUserUPN retrieves the user principal name from the context.
func GetUserUPN(ctx context.Context) (string, bool) {
	upn, ok := ctx.Value(UserUPNContextKey).(string)
	if !ok || upn == "" {
		return "", false
	}
	return upn, true
}
