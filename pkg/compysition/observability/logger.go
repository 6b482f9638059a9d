// Package observability carries the ambient logging, metrics, and tracing
// concerns shared by actor and director: structured logging via log/slog
// and OpenTelemetry counters/spans, grounded on flowgraph's
// observability/logger.go and observability/metrics.go.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// EnrichLogger returns a child logger with actor/director identity fields
// attached, mirroring flowgraph's EnrichLogger helper.
func EnrichLogger(base *slog.Logger, component, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", component, "name", name)
}

// LogActorStart logs an actor transitioning to running.
func LogActorStart(logger *slog.Logger, name string, inputQueues, outputQueues int) {
	logger.Info("actor started", "actor", name, "input_queues", inputQueues, "output_queues", outputQueues)
}

// LogActorStop logs an actor transitioning to stopped.
func LogActorStop(logger *slog.Logger, name string) {
	logger.Info("actor stopped", "actor", name)
}

// LogActorMessage logs a message an actor raised via Actor.Log, mirroring
// it at the matching slog level before it is also delivered to the
// actor's Logs group queues.
func LogActorMessage(logger *slog.Logger, actorName, level, message string) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error", "critical":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	logger.Log(context.Background(), slogLevel, message, "actor", actorName, "level", level)
}

// LogConsumeError logs a consume-cycle failure with the originating queue
// and rescue bookkeeping, grounded on the original implementation's
// handle_exception logging call in the consumer loop.
func LogConsumeError(logger *slog.Logger, actorName, origin string, err error, rescueCount int) {
	logger.Error("consume failed", "actor", actorName, "origin", origin, "error", err, "rescue_count", rescueCount)
}

// SpanFromContext starts a span named operation under the given tracer,
// returning the derived context and span, mirroring flowgraph's
// per-step tracing idiom applied here to doConsume.
func SpanFromContext(ctx context.Context, tracer trace.Tracer, operation string, attrs ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation, attrs...)
}
