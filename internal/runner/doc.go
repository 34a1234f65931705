// Package runner drives a benchmark run across providers and scenarios.
//
// Every (provider, scenario, iteration) triple is an independent goroutine;
// the only throttle is the per-provider [RateLimiter]. Outcomes flow over a
// channel to a single aggregator that owns the per-pair accumulators, emits
// [ProgressEvent], [ResultEvent] and [SnapshotEvent] values and hands the
// final [RunSnapshot] to an optional [Sink].
//
// # Basic Usage
//
//	handles := provider.DefaultRegistry().Build(settings)
//	r := runner.New(runner.DefaultRunConfiguration(), runner.WithSink(store))
//	h, err := r.Start(ctx, handles)
//	if err != nil {
//		return err // *ConfigurationError when no provider is configured
//	}
//	for ev := range h.Events() {
//		// render progress
//	}
//	snap, err := h.Wait(ctx)
//
// # Lifecycle
//
// A run moves Idle → Running → Completed, or → Stopped after
// [RunHandle.Abort] (or cancellation of the Start context). Abort prevents
// new dispatches; calls already on the wire finish and are recorded. A run
// with no configured provider goes straight to Failed.
//
// Units skipped by abort are removed from the totals and are neither
// successes nor failures. Pairs that never landed an outcome are absent from
// the snapshot.
package runner
