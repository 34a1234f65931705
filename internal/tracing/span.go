package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrProvider  = attribute.Key("provbench.provider")
	attrScenario  = attribute.Key("provbench.scenario")
	attrIteration = attribute.Key("provbench.iteration")
	attrLatency   = attribute.Key("provbench.latency_ms")
	attrStatus    = attribute.Key("http.response.status_code")
)

// StartUnitSpan starts a client span for one provider call. The span is
// named "<provider> <scenario>".
func StartUnitSpan(ctx context.Context, tracer trace.Tracer, provider, scenario string, iteration int) (context.Context, trace.Span) {
	name := provider + " " + scenario
	if scenario == "" {
		name = provider + " request"
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attrProvider.String(provider),
			attrScenario.String(scenario),
			attrIteration.Int(iteration),
		),
	)
}

// OutcomeAttributes describes a finished call. Zero values are omitted.
func OutcomeAttributes(status int, latencyMs float64) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if status != 0 {
		attrs = append(attrs, attrStatus.Int(status))
	}
	if latencyMs > 0 {
		attrs = append(attrs, attrLatency.Float64(latencyMs))
	}
	return attrs
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
