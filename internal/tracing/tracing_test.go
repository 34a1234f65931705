package tracing_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/provbench/internal/config"
	"github.com/torosent/provbench/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should hand out no-op spans")
	}
}

func TestInit(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantErr       string
		wantPropagate bool
	}{
		{
			name:          "grpc collector",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", ServiceName: "bench-ci", SampleRate: 1, Insecure: true},
			wantPropagate: true,
		},
		{
			name:          "default protocol is grpc",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 0.25, Insecure: true},
			wantPropagate: true,
		},
		{
			name:          "http collector",
			cfg:           config.TracingConfig{Endpoint: "localhost:4318", Protocol: "HTTP", SampleRate: 1, Insecure: true},
			wantPropagate: true,
		},
		{
			name: "propagation switched off",
			cfg:  config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1, Insecure: true, Propagate: &off},
		},
		{
			name:    "unsupported protocol",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift", Insecure: true},
			wantErr: "unsupported OTLP protocol",
		},
		{
			name:    "negative sample rate",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.5},
			wantErr: "sample_rate",
		},
		{
			name:    "sample rate above one",
			cfg:     config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5},
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tracing.Init(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Init() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if got := p.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
		})
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	// Tracer() on nil should return no-op, not panic
	tracer := p.Tracer()
	_, span := tracer.Start(context.Background(), "test")
	span.End()
}

func TestStartUnitSpan(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	tests := []struct {
		name         string
		provider     string
		scenario     string
		wantSpanName string
	}{
		{"scenario", "alchemy", "balanceLookup", "alchemy balanceLookup"},
		{"no scenario", "codex", "", "codex request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			_, span := tracing.StartUnitSpan(context.Background(), tracer, tt.provider, tt.scenario, 3)
			span.End()

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if got := spans[0].Name; got != tt.wantSpanName {
				t.Errorf("span name = %q, want %q", got, tt.wantSpanName)
			}
			if spans[0].SpanKind != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", spans[0].SpanKind)
			}

			attrs := map[string]string{}
			for _, attr := range spans[0].Attributes {
				attrs[string(attr.Key)] = attr.Value.Emit()
			}
			if attrs["provbench.provider"] != tt.provider {
				t.Errorf("provider attribute = %q, want %q", attrs["provbench.provider"], tt.provider)
			}
			if attrs["provbench.iteration"] != "3" {
				t.Errorf("iteration attribute = %q, want 3", attrs["provbench.iteration"])
			}
		})
	}
}

func TestOutcomeAttributes(t *testing.T) {
	if attrs := tracing.OutcomeAttributes(0, 0); len(attrs) != 0 {
		t.Fatalf("OutcomeAttributes(0, 0) = %v, want none", attrs)
	}

	exporter, tracer := setupTestTracer(t)
	_, span := tracer.Start(context.Background(), "outcome")
	tracing.EndSpan(span, nil, tracing.OutcomeAttributes(200, 12.5)...)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	var status int64
	var latency float64
	for _, attr := range spans[0].Attributes {
		switch string(attr.Key) {
		case "http.response.status_code":
			status = attr.Value.AsInt64()
		case "provbench.latency_ms":
			latency = attr.Value.AsFloat64()
		}
	}
	if status != 200 || latency != 12.5 {
		t.Errorf("status = %d latency = %v, want 200 and 12.5", status, latency)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, context.DeadlineExceeded)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want %d (Error)", spans[0].Status.Code, codes.Error)
	}
}

func TestEndSpanOk(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-ok")
	tracing.EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("span status code = %d, want %d (Ok)", spans[0].Status.Code, codes.Ok)
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if got == "" {
		t.Error("traceparent header not injected")
	}
	// traceparent format: version-traceid-spanid-flags (e.g., 00-abc123...-def456...-01)
	if len(got) < 55 {
		t.Errorf("traceparent header too short: %q", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	// Without a span in context, injection should not panic and not set traceparent
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	got := headers.Get("Traceparent")
	if got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}
