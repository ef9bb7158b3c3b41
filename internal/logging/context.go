package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID correlates every line of a single reorganization run.
	FieldRunID = "run_id"
	// FieldRoot is the absolute root directory being reorganized.
	FieldRoot = "root"
	// FieldDepth is the shard depth of the run.
	FieldDepth = "depth"
	// FieldEventType classifies a line for filtering (e.g. "move_failed").
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type runKey struct{}

type runFields struct {
	id    string
	root  string
	depth int
}

// WithRun stores run correlation fields on ctx.
func WithRun(ctx context.Context, runID, root string, depth int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runKey{}, runFields{id: runID, root: root, depth: depth})
}

// RunIDFromContext returns the run ID stored by WithRun.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	fields, ok := ctx.Value(runKey{}).(runFields)
	if !ok || fields.id == "" {
		return "", false
	}
	return fields.id, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields, ok := ctx.Value(runKey{}).(runFields)
	if !ok {
		return nil
	}
	attrs := make([]slog.Attr, 0, 3)
	if fields.id != "" {
		attrs = append(attrs, slog.String(FieldRunID, fields.id))
	}
	if fields.root != "" {
		attrs = append(attrs, slog.String(FieldRoot, fields.root))
	}
	if fields.depth > 0 {
		attrs = append(attrs, slog.Int(FieldDepth, fields.depth))
	}
	return attrs
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
