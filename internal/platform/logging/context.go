package logging

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

var defaultLogger = slog.Default()

// FromContext returns the request logger, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, defaultLogger)
}

// FromContextOr returns the logger stored in ctx, or fallback when there is none.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx == nil {
		return fallback
	}

	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}

	return fallback
}

// WithContext stores a logger in the context.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// enrich returns ctx with its logger extended by attr.
func enrich(ctx context.Context, attr slog.Attr) context.Context {
	return WithContext(ctx, FromContext(ctx).With(attr))
}

// WithRequestID tags the context logger with request_id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return enrich(ctx, slog.String("request_id", requestID))
}

// WithTraceID tags the context logger with trace_id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return enrich(ctx, slog.String("trace_id", traceID))
}

// WithCorrelationID tags the context logger with correlation_id.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return enrich(ctx, slog.String("correlation_id", correlationID))
}

// WithSessionID tags the context logger with the widget session.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return enrich(ctx, SessionAttr(sessionID))
}

// sessionPrefixLen is how much of a session ID reaches the logs. The full
// ID is the session cookie value.
const sessionPrefixLen = 8

// SessionAttr is the "widget" attribute for a session, truncated.
func SessionAttr(sessionID string) slog.Attr {
	if len(sessionID) > sessionPrefixLen {
		sessionID = sessionID[:sessionPrefixLen]
	}

	return slog.String("widget", sessionID)
}

// SetDefault sets the default logger used when no logger is in context.
func SetDefault(logger *slog.Logger) {
	defaultLogger = logger
	slog.SetDefault(logger)
}
