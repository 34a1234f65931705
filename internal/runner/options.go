package runner

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/stats"
)

// Sink receives the final snapshot of every run that started.
type Sink interface {
	Save(ctx context.Context, snap RunSnapshot) error
}

// Recorder observes every landed outcome, e.g. a live metrics collector.
type Recorder interface {
	RecordOutcome(providerID, scenario string, outcome stats.CallOutcome)
}

// TargetSource supplies the wallet for each iteration. Next is called once
// per iteration before dispatch; errors fall back to provider.DefaultTarget.
type TargetSource interface {
	Next(ctx context.Context) (provider.Target, error)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLimiterFactory replaces how per-provider limiters are built.
func WithLimiterFactory(f LimiterFactory) Option {
	return func(r *Runner) {
		if f != nil {
			r.limiters = f
		}
	}
}

// WithSink hands the final snapshot to sink.
func WithSink(sink Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithRecorder forwards every landed outcome to rec from the aggregator.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithTracer opens one span per dispatched unit.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithTargets draws per-iteration targets from src.
func WithTargets(src TargetSource) Option {
	return func(r *Runner) {
		r.targets = src
	}
}

// WithEventBuffer sizes the event channel returned by RunHandle.Events.
func WithEventBuffer(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.eventBuffer = n
		}
	}
}

// WithoutEvents disables the event stream for callers that only Wait.
func WithoutEvents() Option {
	return func(r *Runner) {
		r.noEvents = true
	}
}
