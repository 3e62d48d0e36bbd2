package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/taskhub/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var (
		vErr *ValidationError
		mErr *MaterializationError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &mErr):
		return "partial_materialization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOwnership):
		return "ownership"
	case errors.Is(err, ErrConcurrency):
		return "concurrency"
	}
	return "unexpected"
}

func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	level := slog.LevelWarn
	if kind == "unexpected" || kind == "partial_materialization" {
		level = slog.LevelError
	}
	logger.Log(ctx, level, msg, "error_kind", kind, "error", err)
}
