package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogContext holds the per-invocation logging context.
type LogContext struct {
	RunID   string
	Command string
	Package string
	Stage   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// NewRunID returns a fresh identifier for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RunID = runID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithCommand adds the CLI command name to the context.
func WithCommand(ctx context.Context, command string) context.Context {
	lc := extractLogContext(ctx)
	lc.Command = command
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPackage adds the package identifier being processed to the context.
func WithPackage(ctx context.Context, pkg string) context.Context {
	lc := extractLogContext(ctx)
	lc.Package = pkg
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 4)

	if lc.RunID != "" {
		attrs = append(attrs, slog.String("run.id", lc.RunID))
	}
	if lc.Command != "" {
		attrs = append(attrs, slog.String("command", lc.Command))
	}
	if lc.Package != "" {
		attrs = append(attrs, slog.String("package", lc.Package))
	}
	if lc.Stage != "" {
		attrs = append(attrs, slog.String("stage", lc.Stage))
	}
	return attrs
}

func logWithContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	all := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, level, msg, all...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logWithContext(ctx, slog.LevelDebug, msg, attrs)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}
