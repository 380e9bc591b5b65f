// Package logging provides structured logging configuration using log/slog.
//
// This package integrates with chi's RequestID middleware and the pipeline's
// run identifier so that every log entry emitted while serving a request or
// executing a run can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const ctxKeyRunID contextKey = "run_id"

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w without touching the global default.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextWithRunID stores the pipeline run identifier in ctx.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, runID)
}

// RunIDFromContext returns the run identifier stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns a logger enriched with request and run context.
//
// When called with a context that carries a chi RequestID or a pipeline run
// ID, the returned logger includes request_id and run_id in all entries.
//
// Usage:
//
//	func (r *Runner) Run(ctx context.Context) (*Summary, error) {
//	    ctx = logging.ContextWithRunID(ctx, runID)
//	    logger := logging.FromContext(ctx)
//	    logger.Info("extracting source tables")
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// Usage:
//
//	tableLogger := logging.WithFields(ctx, "table", rs.Name)
//	tableLogger.Info("replacing table", "rows", rs.Len())
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
