package core

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	topicKey
	runIDKey
)

func withValue[T comparable](ctx context.Context, key ctxKey, v T) context.Context {
	var zero T
	if ctx == nil || v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOf[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithLogger attaches a slog logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return withValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the attached logger, or slog.Default() if absent.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := valueOf[*slog.Logger](ctx, loggerKey); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRun scopes ctx to one digest run: topic and run id are stored and added
// to the logger as correlation fields.
func WithRun(ctx context.Context, logger *slog.Logger, topic, runID string) (context.Context, *slog.Logger) {
	if logger == nil {
		logger = LoggerFromContext(ctx)
	}
	logger = logger.With("topic", topic, "run_id", runID)
	ctx = withValue(ctx, topicKey, topic)
	ctx = withValue(ctx, runIDKey, runID)
	return WithLogger(ctx, logger), logger
}

func TopicFromContext(ctx context.Context) string {
	v, _ := valueOf[string](ctx, topicKey)
	return v
}

func RunIDFromContext(ctx context.Context) string {
	v, _ := valueOf[string](ctx, runIDKey)
	return v
}
