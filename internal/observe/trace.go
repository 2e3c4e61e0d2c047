package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Orator tracer.
const tracerName = "github.com/oratorbot/orator"

// Tracer returns the package-level [trace.Tracer] for Orator. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartCommandSpan opens the span covering one slash command invocation,
// tagged with the command name and originating guild.
func StartCommandSpan(ctx context.Context, command, guildID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "command "+command,
		trace.WithAttributes(
			attribute.String("command", command),
			attribute.String("guild_id", guildID),
		))
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
