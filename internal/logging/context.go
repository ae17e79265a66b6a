package logging

import (
	"context"
	"log/slog"

	"stillpoint/internal/services"
)

const (
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldSnapshot is the standardized structured logging key for state snapshot identifiers.
	FieldSnapshot = "snapshot"
	// FieldEventType marks coarse lifecycle events (stage_start, stage_complete, stage_failure).
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	return fields
}

// WithStage annotates ctx so loggers derived via WithContext carry the stage field.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}

// WithRunID annotates ctx so loggers derived via WithContext carry the run field.
func WithRunID(ctx context.Context, id string) context.Context {
	return services.WithRunID(ctx, id)
}
