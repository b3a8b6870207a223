package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a context carrying the given logger, typically one
// already enriched with request-scoped attributes such as a trace ID.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext retrieves the logger stored in the context, or nil if none.
func FromContext(ctx context.Context) *slog.Logger {
	log, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return log
}

// FromContextOrDefault retrieves the request-scoped logger from the context,
// falling back to the supplied default (or slog.Default if that is nil too).
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if log := FromContext(ctx); log != nil {
		return log
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
