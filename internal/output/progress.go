package output

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/runner"
)

// SnapshotSource yields the latest partial snapshot of a run. *runner.RunHandle
// satisfies it.
type SnapshotSource interface {
	Snapshot() runner.RunSnapshot
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	source    SnapshotSource
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. source may be nil, in which case only run-wide counters are shown.
func NewProgressReporter(collector *metrics.Collector, source SnapshotSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		source:    source,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	stats := p.collector.Stats(p.collector.Elapsed())
	line := "\r"
	if p.source != nil {
		snap := p.source.Snapshot()
		if snap.Total > 0 {
			line += fmt.Sprintf("Progress: %d/%d (%.0f%%) | Pairs: %d/%d | ",
				snap.Completed, snap.Total,
				float64(snap.Completed)/float64(snap.Total)*100,
				snap.PairsCompleted, snap.PairsTotal)
		}
	}
	line += fmt.Sprintf("Requests: %d | Successes: %d | Failures: %d | RPS: %.1f",
		stats.Total, stats.Successes, stats.Failures, stats.RequestsPerSec)
	if stats.Total > 0 {
		line += fmt.Sprintf(" | P99 %.1fms", stats.P99LatencyMs)
	}
	if name, count, ok := topError(stats); ok {
		line += fmt.Sprintf(" | Top Error: %s (%d)", name, count)
	}
	return line
}

func topError(stats metrics.Stats) (string, int, bool) {
	if len(stats.Errors) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(stats.Errors))
	for name := range stats.Errors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if stats.Errors[names[i]] != stats.Errors[names[j]] {
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		}
		return names[i] < names[j]
	})
	name := names[0]
	return name, stats.Errors[name], true
}
