package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "careline"

// StartTurnSpan starts a span for one conversation turn.
func StartTurnSpan(ctx context.Context, taskID, contextID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("context.id", contextID),
		),
	)
}

// StartCapabilitySpan starts a client span for an external capability call.
func StartCapabilitySpan(ctx context.Context, capability, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, capability+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("capability.operation", operation),
		),
	)
}

// StartRecordSpan starts a span for writing a session record.
func StartRecordSpan(ctx context.Context, sessionID, sink string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "record",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("record.sink", sink),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
