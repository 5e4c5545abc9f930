// Package telemetry records one OpenTelemetry span per graph node run and
// tracks per-model request/token counts across a process's lifetime.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry wraps the devtwin tracer used to span graph node work.
type Telemetry struct {
	tracer trace.Tracer
}

// NewTelemetry builds a Telemetry against the "devtwin" tracer name.
func NewTelemetry() *Telemetry {
	return &Telemetry{
		tracer: otel.Tracer("devtwin"),
	}
}

// StepEvent is one node's execution outcome, turned into a span.
type StepEvent struct {
	StepIndex    int
	StepName     string
	FilesTouched []string
	Success      bool
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
	DurationMs   int64
}

// RecordStep records a complete step execution
func (t *Telemetry) RecordStep(ctx context.Context, event StepEvent) {
	_, span := t.tracer.Start(ctx, event.StepName)
	defer span.End()

	span.SetAttributes(
		attribute.Int("step.index", event.StepIndex),
		attribute.StringSlice("step.files_touched", event.FilesTouched),
		attribute.Bool("step.success", event.Success),
		attribute.Int64("step.duration_ms", event.DurationMs),
	)

	if event.ErrorMessage != "" {
		span.SetAttributes(attribute.String("step.error", event.ErrorMessage))
	}
}

// UsageTracker tracks API request and token usage
type UsageTracker struct {
	requests map[string]int // backend/model -> request count
	tokens   map[string]int // backend/model -> token count
}

// NewUsageTracker creates a new usage tracker
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		requests: make(map[string]int),
		tokens:   make(map[string]int),
	}
}

// RecordRequest records an API request
func (u *UsageTracker) RecordRequest(backend, model string, tokens int) {
	key := backend + "/" + model
	u.requests[key]++
	u.tokens[key] += tokens
}

// GetStats returns usage statistics
func (u *UsageTracker) GetStats() map[string]UsageStats {
	stats := make(map[string]UsageStats)
	for key, requests := range u.requests {
		stats[key] = UsageStats{
			Requests: requests,
			Tokens:   u.tokens[key],
		}
	}
	return stats
}

// UsageStats represents usage statistics for a model
type UsageStats struct {
	Requests int
	Tokens   int
}
