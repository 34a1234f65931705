package stats_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/provbench/internal/stats"
)

func TestComputeDistributionEmpty(t *testing.T) {
	assert.Equal(t, stats.Distribution{}, stats.ComputeDistribution(nil))
	assert.Equal(t, stats.Distribution{}, stats.ComputeDistribution([]float64{}))
}

func TestComputeDistributionSingleValue(t *testing.T) {
	got := stats.ComputeDistribution([]float64{42.5})
	want := stats.Distribution{Min: 42.5, Max: 42.5, Mean: 42.5, Median: 42.5, P95: 42.5, P99: 42.5, StdDev: 0, Count: 1}
	assert.Equal(t, want, got)
}

func TestComputeDistributionMultipleValues(t *testing.T) {
	got := stats.ComputeDistribution([]float64{10, 20, 30, 40, 50})
	assert.Equal(t, 10.0, got.Min)
	assert.Equal(t, 50.0, got.Max)
	assert.Equal(t, 30.0, got.Mean)
	assert.Equal(t, 30.0, got.Median)
	assert.Equal(t, 5, got.Count)
}

func TestComputeDistributionNearestRank(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	got := stats.ComputeDistribution(values)
	assert.Equal(t, 50.0, got.Median)
	assert.Equal(t, 95.0, got.P95)
	assert.Equal(t, 99.0, got.P99)
}

func TestComputeDistributionUnsortedInput(t *testing.T) {
	input := []float64{50, 10, 30, 40, 20}
	got := stats.ComputeDistribution(input)
	assert.Equal(t, 10.0, got.Min)
	assert.Equal(t, 50.0, got.Max)
	assert.Equal(t, 30.0, got.Median)
	assert.Equal(t, []float64{50, 10, 30, 40, 20}, input, "input must not be reordered")
}

func TestComputeDistributionPopulationStdDev(t *testing.T) {
	got := stats.ComputeDistribution([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, got.Mean, 1e-9)
	assert.InDelta(t, 2.0, got.StdDev, 1e-9)
}

func TestComputeDistributionOrderingProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := rnd.Intn(50) + 1
		values := make([]float64, n)
		for i := range values {
			values[i] = rnd.Float64() * 1000
		}
		d := stats.ComputeDistribution(values)
		require.LessOrEqual(t, d.Min, d.Median)
		require.LessOrEqual(t, d.Median, d.Max)
		require.LessOrEqual(t, d.P95, d.P99)
		require.Equal(t, n, d.Count)
	}
}

func TestComputeSuccessRate(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []stats.CallOutcome
		want     float64
	}{
		{name: "empty", want: 0},
		{name: "all succeed", outcomes: []stats.CallOutcome{{Success: true}, {Success: true}}, want: 100},
		{name: "all fail", outcomes: []stats.CallOutcome{{}, {}}, want: 0},
		{name: "three of four", outcomes: []stats.CallOutcome{{Success: true}, {Success: true}, {Success: true}, {}}, want: 75},
		{name: "rounded", outcomes: []stats.CallOutcome{{Success: true}, {Success: true}, {}}, want: 66.67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stats.ComputeSuccessRate(tt.outcomes))
		})
	}
}

func ms(v float64) *float64 { return &v }

func bytes(v int64) *int64 { return &v }

func TestSummarizeMixedOutcomes(t *testing.T) {
	outcomes := []stats.CallOutcome{
		{Iteration: 2, Success: true, LatencyMs: ms(30), TTFBMs: ms(10), PayloadBytes: bytes(300)},
		{Iteration: 0, Success: true, LatencyMs: ms(10), TTFBMs: ms(5), PayloadBytes: bytes(100)},
		{Iteration: 1, Success: false, LatencyMs: ms(50), ErrorMessage: "HTTP 500: Internal Server Error", ErrorCode: "500"},
	}
	s := stats.Summarize("alchemy", "balanceLookup", outcomes, 2*time.Second)

	assert.Equal(t, 3, s.TotalRequests)
	assert.Equal(t, 2, s.Successes)
	assert.Equal(t, 3, s.Latency.Count, "failed calls with latency are counted")
	assert.Equal(t, 50.0, s.Latency.Max)
	assert.Equal(t, 2, s.TTFB.Count)
	assert.Equal(t, 200.0, s.AvgPayloadBytes)
	assert.Equal(t, 1.0, s.ThroughputReqPerSec)
	assert.Equal(t, 66.67, s.SuccessRatePercent)
	assert.Equal(t, 2000.0, s.DurationMs)
	assert.Empty(t, s.Error, "representative error only when nothing succeeded")
	assert.False(t, s.AllFailed)
	assert.True(t, s.AnySucceeded)
}

func TestSummarizeAllFailed(t *testing.T) {
	outcomes := []stats.CallOutcome{
		{Success: false, ErrorMessage: "Request timeout", ErrorCode: "TIMEOUT"},
		{Success: false, ErrorMessage: "HTTP 503: Service Unavailable", ErrorCode: "503"},
	}
	s := stats.Summarize("mobula", "tokenPrices", outcomes, time.Second)

	assert.Equal(t, 0.0, s.SuccessRatePercent)
	assert.True(t, s.AllFailed)
	assert.Equal(t, "Request timeout", s.Error)
	assert.Equal(t, "TIMEOUT", s.ErrorCode)
	assert.Equal(t, stats.Distribution{}, s.Latency, "no outcome carries latency")
	assert.Equal(t, 0.0, s.ThroughputReqPerSec)
}

func TestSummarizeEmpty(t *testing.T) {
	s := stats.Summarize("codex", "nftMetadata", nil, 0)
	assert.Equal(t, 0, s.TotalRequests)
	assert.False(t, s.AllFailed)
	assert.Empty(t, s.Error)
}
