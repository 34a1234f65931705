// Package metrics aggregates run-wide figures across every provider for live
// progress output and the dashboard header.
//
// The [Collector] is fed every landed outcome, typically as a runner.Recorder:
//
//	collector := metrics.NewCollector()
//	h, err := runner.New(cfg, runner.WithRecorder(collector)).Start(ctx, handles)
//
//	// Periodically, from any goroutine
//	stats := collector.Stats(collector.Elapsed())
//
// Latency and TTFB percentiles come from HDR histograms at microsecond
// resolution and are approximations. The exact per-provider, per-scenario
// distributions live in the run snapshot.
//
// Failures are counted by [FriendlyErrorName] of the outcome's error code and
// bucketed per provider; [FlattenStatusBuckets] turns those buckets into
// sorted rows for display.
package metrics
