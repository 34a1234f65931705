package output

import (
	"cmp"
	"slices"

	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/runner"
)

// Ranking orders the providers of one scenario by mean latency.
type Ranking struct {
	Scenario string      `json:"scenario" yaml:"scenario"`
	Entries  []RankEntry `json:"entries" yaml:"entries"`
}

// RankEntry is one provider's place in a Ranking. Fastest marks rank 1.
type RankEntry struct {
	Rank                int     `json:"rank" yaml:"rank"`
	Provider            string  `json:"provider" yaml:"provider"`
	MeanLatencyMs       float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	ThroughputReqPerSec float64 `json:"throughput_req_per_sec" yaml:"throughput_req_per_sec"`
	SuccessRatePercent  float64 `json:"success_rate_percent" yaml:"success_rate_percent"`
	Fastest             bool    `json:"fastest" yaml:"fastest"`
}

// Leaderboard ranks providers per scenario by mean latency, fastest first.
// Pairs where every call failed or no latency was measured are left out, as
// are scenarios with no rankable pair. Scenarios follow display order.
func Leaderboard(snap runner.RunSnapshot) []Ranking {
	byScenario := make(map[string][]RankEntry)
	for _, s := range snap.Summaries() {
		if s.AllFailed || s.Latency.Count == 0 {
			continue
		}
		byScenario[s.Scenario] = append(byScenario[s.Scenario], RankEntry{
			Provider:            s.Provider,
			MeanLatencyMs:       s.Latency.Mean,
			ThroughputReqPerSec: s.ThroughputReqPerSec,
			SuccessRatePercent:  s.SuccessRatePercent,
		})
	}
	if len(byScenario) == 0 {
		return nil
	}

	rankings := make([]Ranking, 0, len(byScenario))
	for _, scenario := range scenarioOrder(byScenario) {
		entries := byScenario[scenario]
		slices.SortFunc(entries, func(a, b RankEntry) int {
			return cmp.Or(cmp.Compare(a.MeanLatencyMs, b.MeanLatencyMs), cmp.Compare(a.Provider, b.Provider))
		})
		for i := range entries {
			entries[i].Rank = i + 1
		}
		entries[0].Fastest = true
		rankings = append(rankings, Ranking{Scenario: scenario, Entries: entries})
	}
	return rankings
}

func scenarioOrder[V any](m map[string]V) []string {
	position := make(map[string]int)
	for i, sc := range provider.AllScenarios() {
		position[string(sc)] = i
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		pa, okA := position[a]
		pb, okB := position[b]
		switch {
		case okA && okB:
			return cmp.Compare(pa, pb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return cmp.Compare(a, b)
	})
	return keys
}
