package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/smsrelay"

// SpanRelay is the name of the span wrapping each outbound relay.
const SpanRelay = "smsrelay.relay"

// Tracer provides OpenTelemetry tracing for smsrelay.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from tp, or from the global provider when tp is nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer: tp.Tracer(tracerName),
	}
}

// StartRelaySpan starts a span for one outbound relay. deviceID is empty for
// direct relays.
func (t *Tracer) StartRelaySpan(ctx context.Context, kind, deviceID, chatID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("smsrelay.kind", kind),
		attribute.String("smsrelay.chat_id", chatID),
	}
	if deviceID != "" {
		attrs = append(attrs, attribute.String("smsrelay.device_id", deviceID))
	}
	return t.tracer.Start(ctx, SpanRelay, trace.WithAttributes(attrs...))
}

// EndRelaySpan ends a relay span, marking it failed when err is non-nil.
func (t *Tracer) EndRelaySpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
