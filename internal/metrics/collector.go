package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/provbench/internal/stats"
)

// Collector aggregates every landed outcome of a run in a thread-safe manner.
// Its percentiles are HDR approximations across all providers; per-pair
// figures come from stats.Summarize.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	ttfb         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	bytes        int64
	errorsByName map[string]int64
	byProvider   map[string]*providerCounts
	start        time.Time
}

type providerCounts struct {
	successes int64
	failures  int64
	codes     map[string]int
}

// ProviderStats is the per-provider slice of Stats.
type ProviderStats struct {
	Total     int64 `json:"total" yaml:"total"`
	Successes int64 `json:"successes" yaml:"successes"`
	Failures  int64 `json:"failures" yaml:"failures"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	P50TTFB        time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
	BytesReceived  int64         `json:"bytes_received" yaml:"bytes_received"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	P50TTFBMs     float64 `json:"p50_ttfb_ms" yaml:"p50_ttfb_ms"`
	DurationMs    float64 `json:"duration_ms" yaml:"duration_ms"`

	Errors        map[string]int            `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
	Providers     map[string]ProviderStats  `json:"providers,omitempty" yaml:"providers,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		// Track latencies from 1µs up to 60s with 3 significant figures.
		hist:         hdrhistogram.New(1, 60_000_000, 3),
		ttfb:         hdrhistogram.New(1, 60_000_000, 3),
		errorsByName: make(map[string]int64),
		byProvider:   make(map[string]*providerCounts),
		start:        time.Now(),
	}
}

// Start resets the clock used by Elapsed.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since NewCollector or Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordOutcome records one landed call. Outcomes without latency still
// count towards totals and failures.
func (c *Collector) RecordOutcome(providerID, scenario string, o stats.CallOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.LatencyMs != nil {
		latency := time.Duration(*o.LatencyMs * float64(time.Millisecond))
		first := c.hist.TotalCount() == 0
		recordClamped(c.hist, latency)
		c.sumLatency += latency
		if first || latency < c.minLatency {
			c.minLatency = latency
		}
		if latency > c.maxLatency {
			c.maxLatency = latency
		}
	}
	if o.TTFBMs != nil {
		recordClamped(c.ttfb, time.Duration(*o.TTFBMs*float64(time.Millisecond)))
	}
	if o.PayloadBytes != nil {
		c.bytes += *o.PayloadBytes
	}

	p, ok := c.byProvider[providerID]
	if !ok {
		p = &providerCounts{codes: make(map[string]int)}
		c.byProvider[providerID] = p
	}
	if o.Success {
		c.successes++
		p.successes++
		return
	}
	c.failures++
	p.failures++
	code := o.ErrorCode
	if code == "" {
		code = "ERROR"
	}
	p.codes[code]++
	c.errorsByName[FriendlyErrorName(code)]++
}

func recordClamped(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:         total,
		Successes:     c.successes,
		Failures:      c.failures,
		MinLatency:    c.minLatency,
		MaxLatency:    c.maxLatency,
		BytesReceived: c.bytes,
	}

	if n := c.hist.TotalCount(); n > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / n)
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if c.ttfb.TotalCount() > 0 {
		stats.P50TTFB = time.Duration(c.ttfb.ValueAtQuantile(50)) * time.Microsecond
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	stats.P50TTFBMs = toMs(stats.P50TTFB)

	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByName) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByName))
		for k, v := range c.errorsByName {
			stats.Errors[k] = int(v)
		}
	}

	if len(c.byProvider) > 0 {
		stats.Providers = make(map[string]ProviderStats, len(c.byProvider))
		for id, p := range c.byProvider {
			stats.Providers[id] = ProviderStats{
				Total:     p.successes + p.failures,
				Successes: p.successes,
				Failures:  p.failures,
			}
			if len(p.codes) == 0 {
				continue
			}
			if stats.StatusBuckets == nil {
				stats.StatusBuckets = make(map[string]map[string]int)
			}
			codes := make(map[string]int, len(p.codes))
			for code, n := range p.codes {
				codes[code] = n
			}
			stats.StatusBuckets[id] = codes
		}
	}

	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
