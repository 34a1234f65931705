package metrics_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/stats"
)

func success(ms float64) stats.CallOutcome {
	return stats.CallOutcome{Success: true, LatencyMs: &ms}
}

func failure(code string, ms float64) stats.CallOutcome {
	o := stats.CallOutcome{ErrorCode: code, ErrorMessage: code}
	if ms > 0 {
		o.LatencyMs = &ms
	}
	return o
}

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	for _, ms := range []float64{10, 20, 30, 40, 50} {
		c.RecordOutcome("alchemy", "balanceLookup", success(ms))
	}

	stats := c.Stats(0)

	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.Successes != 5 {
		t.Errorf("expected successes 5, got %d", stats.Successes)
	}
	if stats.Failures != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
}

func TestMinLatencyKeepsZero(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOutcome("mobula", "tokenPrices", success(0))
	c.RecordOutcome("mobula", "tokenPrices", success(15))

	stats := c.Stats(0)
	if stats.MinLatency != 0 {
		t.Errorf("expected min latency 0, got %v", stats.MinLatency)
	}
	if stats.MaxLatency != 15*time.Millisecond {
		t.Errorf("expected max latency 15ms, got %v", stats.MaxLatency)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.RecordOutcome("codex", "tokenPrices", success(float64(i)))
	}

	stats := c.Stats(0)

	if stats.P50Latency < 49*time.Millisecond || stats.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", stats.P50Latency)
	}
	if stats.P90Latency < 89*time.Millisecond || stats.P90Latency > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", stats.P90Latency)
	}
	if stats.P99Latency < 98*time.Millisecond || stats.P99Latency > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", stats.P99Latency)
	}
}

func TestFailuresByProviderAndName(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordOutcome("alchemy", "transactions", success(12))
	c.RecordOutcome("alchemy", "transactions", failure("429", 5))
	c.RecordOutcome("alchemy", "nftMetadata", failure("429", 5))
	c.RecordOutcome("mobula", "balanceLookup", failure("TIMEOUT", 30000))
	c.RecordOutcome("mobula", "balanceLookup", failure("", 0))

	stats := c.Stats(time.Second)

	if stats.Total != 5 || stats.Failures != 4 {
		t.Fatalf("total/failures = %d/%d, want 5/4", stats.Total, stats.Failures)
	}
	if got := stats.Errors["HTTP 429 Too Many Requests"]; got != 2 {
		t.Errorf("429 count = %d, want 2 (errors: %v)", got, stats.Errors)
	}
	if got := stats.Errors["Request timeout"]; got != 1 {
		t.Errorf("timeout count = %d, want 1", got)
	}
	if got := stats.Errors["Unclassified error"]; got != 1 {
		t.Errorf("unclassified count = %d, want 1", got)
	}
	if got := stats.StatusBuckets["alchemy"]["429"]; got != 2 {
		t.Errorf("alchemy 429 bucket = %d, want 2", got)
	}
	if got := stats.Providers["mobula"]; got.Failures != 2 || got.Successes != 0 || got.Total != 2 {
		t.Errorf("mobula = %+v", got)
	}
	if got := stats.Providers["alchemy"]; got.Successes != 1 {
		t.Errorf("alchemy = %+v", got)
	}
	if stats.RequestsPerSec != 5 {
		t.Errorf("RequestsPerSec = %v, want 5", stats.RequestsPerSec)
	}

	rows := metrics.FlattenStatusBuckets(stats.StatusBuckets)
	if len(rows) != 3 || rows[0].Provider != "alchemy" || rows[0].Count != 2 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestTTFBAndBytes(t *testing.T) {
	c := metrics.NewCollector()
	ttfb := 4.0
	size := int64(2048)
	o := success(10)
	o.TTFBMs = &ttfb
	o.PayloadBytes = &size
	c.RecordOutcome("goldrush", "balanceLookup", o)
	c.RecordOutcome("goldrush", "balanceLookup", o)

	stats := c.Stats(0)
	if stats.BytesReceived != 4096 {
		t.Errorf("BytesReceived = %d, want 4096", stats.BytesReceived)
	}
	if stats.P50TTFBMs < 3.9 || stats.P50TTFBMs > 4.1 {
		t.Errorf("P50TTFBMs = %v, want ~4", stats.P50TTFBMs)
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordOutcome("alchemy", "balanceLookup", success(15))
	c.RecordOutcome("alchemy", "balanceLookup", success(25))

	stats := c.Stats(100 * time.Millisecond)

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{"total", "successes", "failures", "min_latency_ms", "max_latency_ms", "mean_latency_ms", "p50_latency_ms", "p90_latency_ms", "p99_latency_ms", "duration_ms", "requests_per_sec", "providers"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 10
	recordsPerWorker := 100

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				c.RecordOutcome("alchemy", "balanceLookup", success(1))
			}
		}()
	}
	wg.Wait()

	stats := c.Stats(0)
	expected := workers * recordsPerWorker
	if stats.Total != int64(expected) {
		t.Errorf("expected total %d, got %d", expected, stats.Total)
	}
}
