package output

import (
	"time"

	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/runner"
	"github.com/torosent/provbench/internal/stats"
	"github.com/torosent/provbench/internal/threshold"
)

func sampleReport() Report {
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	snap := runner.RunSnapshot{
		ID:        "01HZX3J6Q4N8K2V5R7T9W1Y3B5",
		State:     runner.StateCompleted,
		StartedAt: started,
		Timestamp: started.Add(4 * time.Second),
		Providers: map[string]map[string]stats.ScenarioSummary{
			"alchemy": {
				"balanceLookup": {
					Provider:            "alchemy",
					Scenario:            "balanceLookup",
					Latency:             stats.Distribution{Min: 80, Max: 400, Mean: 150, Median: 120, P95: 380, P99: 400, StdDev: 40, Count: 10},
					TTFB:                stats.Distribution{Median: 60, Mean: 70, Count: 10},
					AvgPayloadBytes:     2048,
					ThroughputReqPerSec: 4,
					SuccessRatePercent:  100,
					TotalRequests:       10,
					Successes:           10,
					AnySucceeded:        true,
				},
			},
			"codex": {
				"tokenPrices": {
					Provider:           "codex",
					Scenario:           "tokenPrices",
					SuccessRatePercent: 0,
					TotalRequests:      10,
					Error:              "HTTP 401",
					ErrorCode:          "401",
					AllFailed:          true,
				},
			},
		},
		Skipped:               map[string]string{"mobula": "not configured"},
		IterationsPerScenario: 10,
		Completed:             20,
		Total:                 20,
		PairsCompleted:        2,
		PairsTotal:            2,
	}
	overall := metrics.Stats{
		Total:          20,
		Successes:      10,
		Failures:       10,
		MinLatency:     80 * time.Millisecond,
		MaxLatency:     400 * time.Millisecond,
		MeanLatency:    150 * time.Millisecond,
		P50Latency:     120 * time.Millisecond,
		P90Latency:     350 * time.Millisecond,
		P99Latency:     400 * time.Millisecond,
		Duration:       4 * time.Second,
		RequestsPerSec: 5,
		Errors:         map[string]int{"HTTP 401 Unauthorized": 10},
		StatusBuckets:  map[string]map[string]int{"codex": {"401": 10}},
	}
	results := []threshold.Result{
		{
			Threshold: threshold.Threshold{Raw: "latency:p95 < 500", Metric: "latency", Aggregate: "p95", Operator: "<", Value: 500},
			Actual:    380,
			Pair:      "alchemy/balanceLookup",
			Pass:      true,
		},
		{
			Threshold: threshold.Threshold{Raw: "success_rate >= 99", Metric: "success_rate", Aggregate: "value", Operator: ">=", Value: 99},
			Actual:    0,
			Pair:      "codex/tokenPrices",
			Pass:      false,
		},
	}
	return NewReport(snap, overall, results)
}
