package stats

import "time"

// CallOutcome is one observation of a (provider, scenario, iteration) unit.
// Optional measurements are nil when the call never produced them.
type CallOutcome struct {
	Iteration    int      `json:"iteration" yaml:"iteration"`
	Success      bool     `json:"success" yaml:"success"`
	LatencyMs    *float64 `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	TTFBMs       *float64 `json:"ttfb_ms,omitempty" yaml:"ttfb_ms,omitempty"`
	PayloadBytes *int64   `json:"payload_bytes,omitempty" yaml:"payload_bytes,omitempty"`
	HTTPStatus   *int     `json:"http_status,omitempty" yaml:"http_status,omitempty"`
	ErrorMessage string   `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode    string   `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// ScenarioSummary is the reduction of every outcome recorded for one
// (provider, scenario) pair.
type ScenarioSummary struct {
	Provider            string       `json:"provider" yaml:"provider"`
	Scenario            string       `json:"scenario" yaml:"scenario"`
	Latency             Distribution `json:"latency" yaml:"latency"`
	TTFB                Distribution `json:"ttfb" yaml:"ttfb"`
	AvgPayloadBytes     float64      `json:"avg_payload_bytes" yaml:"avg_payload_bytes"`
	ThroughputReqPerSec float64      `json:"throughput_rps" yaml:"throughput_rps"`
	SuccessRatePercent  float64      `json:"success_rate" yaml:"success_rate"`
	TotalRequests       int          `json:"total_requests" yaml:"total_requests"`
	Successes           int          `json:"successes" yaml:"successes"`
	DurationMs          float64      `json:"duration_ms" yaml:"duration_ms"`
	// Error is a representative failure, set only when no request succeeded.
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	// AllFailed and AnySucceeded are the only health flags the engine exposes;
	// thresholded colouring is up to the consumer.
	AllFailed    bool `json:"all_failed" yaml:"all_failed"`
	AnySucceeded bool `json:"any_succeeded" yaml:"any_succeeded"`
}

// Summarize reduces outcomes observed over duration into a ScenarioSummary.
// Latency stats include failed calls that carry a latency; TTFB and payload
// size only count successes.
func Summarize(provider, scenario string, outcomes []CallOutcome, duration time.Duration) ScenarioSummary {
	latencies := make([]float64, 0, len(outcomes))
	ttfbs := make([]float64, 0, len(outcomes))
	var payloadSum float64
	var payloadCount int
	successes := 0

	for _, o := range outcomes {
		if o.LatencyMs != nil {
			latencies = append(latencies, *o.LatencyMs)
		}
		if !o.Success {
			continue
		}
		successes++
		if o.TTFBMs != nil {
			ttfbs = append(ttfbs, *o.TTFBMs)
		}
		if o.PayloadBytes != nil {
			payloadSum += float64(*o.PayloadBytes)
			payloadCount++
		}
	}

	summary := ScenarioSummary{
		Provider:           provider,
		Scenario:           scenario,
		Latency:            ComputeDistribution(latencies),
		TTFB:               ComputeDistribution(ttfbs),
		SuccessRatePercent: ComputeSuccessRate(outcomes),
		TotalRequests:      len(outcomes),
		Successes:          successes,
		DurationMs:         float64(duration) / float64(time.Millisecond),
		AnySucceeded:       successes > 0,
	}
	if payloadCount > 0 {
		summary.AvgPayloadBytes = payloadSum / float64(payloadCount)
	}
	if duration > 0 {
		summary.ThroughputReqPerSec = float64(successes) / duration.Seconds()
	}
	if len(outcomes) > 0 && summary.SuccessRatePercent == 0 {
		summary.AllFailed = true
		for _, o := range outcomes {
			if !o.Success {
				summary.Error = o.ErrorMessage
				summary.ErrorCode = o.ErrorCode
				break
			}
		}
	}
	return summary
}
