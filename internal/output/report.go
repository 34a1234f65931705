package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/runner"
	"github.com/torosent/provbench/internal/threshold"
)

// Report is the document written by the JSON and YAML reporters.
type Report struct {
	Run         runner.RunSnapshot `json:"run" yaml:"run"`
	Overall     metrics.Stats      `json:"overall" yaml:"overall"`
	Leaderboard []Ranking          `json:"leaderboard,omitempty" yaml:"leaderboard,omitempty"`
	Thresholds  *ThresholdSummary  `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdSummary counts threshold verdicts for machine-readable reports.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// ThresholdResultJSON is one threshold verdict.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pair      string  `json:"pair,omitempty" yaml:"pair,omitempty"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// NewReport bundles a finished run with its run-wide figures and threshold
// verdicts.
func NewReport(snap runner.RunSnapshot, overall metrics.Stats, results []threshold.Result) Report {
	return Report{
		Run:         snap,
		Overall:     overall,
		Leaderboard: Leaderboard(snap),
		Thresholds:  summarizeThresholds(results),
	}
}

// OverallFromSnapshot derives run-wide counters from a stored snapshot when
// no live collector is available. Latency percentiles stay zero.
func OverallFromSnapshot(snap runner.RunSnapshot) metrics.Stats {
	var overall metrics.Stats
	providers := make(map[string]metrics.ProviderStats, len(snap.Providers))
	for _, s := range snap.Summaries() {
		overall.Total += int64(s.TotalRequests)
		overall.Successes += int64(s.Successes)
		p := providers[s.Provider]
		p.Total += int64(s.TotalRequests)
		p.Successes += int64(s.Successes)
		p.Failures = p.Total - p.Successes
		providers[s.Provider] = p
	}
	overall.Failures = overall.Total - overall.Successes
	if len(providers) > 0 {
		overall.Providers = providers
	}
	if !snap.StartedAt.IsZero() && snap.Timestamp.After(snap.StartedAt) {
		overall.Duration = snap.Timestamp.Sub(snap.StartedAt)
		overall.DurationMs = float64(overall.Duration) / float64(time.Millisecond)
		overall.RequestsPerSec = float64(overall.Total) / overall.Duration.Seconds()
	}
	return overall
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pair:      tr.Pair,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintReport outputs a human-readable summary report. Success rates are
// coloured when w is a terminal.
func PrintReport(w io.Writer, report Report) {
	printReport(w, report, SchemeFor(w))
}

func printReport(w io.Writer, report Report, scheme *ColorScheme) {
	snap := report.Run
	stats := report.Overall

	scheme.Header.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run:               %s (%s)\n", snap.ID, snap.State)
	fmt.Fprintf(w, "Iterations:        %d per scenario\n", snap.IterationsPerScenario)
	fmt.Fprintf(w, "Requests:          %d/%d\n", snap.Completed, snap.Total)
	fmt.Fprintf(w, "Pairs:             %d/%d\n", snap.PairsCompleted, snap.PairsTotal)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	if stats.MaxLatency > 0 {
		fmt.Fprintln(w, "\nLatency (all providers):")
		fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
		fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
		fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
		fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
		fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)
	}

	if summaries := snap.Summaries(); len(summaries) > 0 {
		fmt.Fprintln(w, "\nScenarios:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  PROVIDER\tSCENARIO\tREQS\tMEAN\tP50\tP95\tP99\tTTFB P50\tPAYLOAD\tRPS\tSUCCESS")
		for _, s := range summaries {
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
				s.Provider,
				s.Scenario,
				s.TotalRequests,
				formatMs(s.Latency.Mean),
				formatMs(s.Latency.Median),
				formatMs(s.Latency.P95),
				formatMs(s.Latency.P99),
				formatMs(s.TTFB.Median),
				formatBytes(s.AvgPayloadBytes),
				s.ThroughputReqPerSec,
				scheme.SuccessRate(s.SuccessRatePercent),
			)
		}
		_ = tw.Flush()

		for _, s := range summaries {
			if s.Error != "" {
				fmt.Fprintf(w, "  %s %s/%s: %s\n", scheme.Bad.Sprint("!"), s.Provider, s.Scenario, s.Error)
			}
		}
	}

	if len(report.Leaderboard) > 0 {
		fmt.Fprintln(w, "\nLeaderboard (mean latency):")
		for _, ranking := range report.Leaderboard {
			fmt.Fprintf(w, "  %s\n", ranking.Scenario)
			for _, e := range ranking.Entries {
				marker := ""
				if e.Fastest {
					marker = " " + scheme.Good.Sprint("fastest")
				}
				fmt.Fprintf(w, "    #%d %-10s %s%s\n", e.Rank, e.Provider, formatMs(e.MeanLatencyMs), marker)
			}
		}
	}

	if len(snap.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped Providers:")
		ids := make([]string, 0, len(snap.Skipped))
		for id := range snap.Skipped {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, scheme.Dim.Sprint(snap.Skipped[id]))
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
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
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, stats.Errors[name])
		}
	}

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}

	if report.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", report.Thresholds.Passed, report.Thresholds.Total)
		for _, r := range report.Thresholds.Results {
			line := fmt.Sprintf("%s: %.2f %s %.2f", r.Threshold, r.Actual, r.Operator, r.Expected)
			if r.Pair != "" {
				line += " (" + r.Pair + ")"
			}
			fmt.Fprintf(w, "  %s %s\n", scheme.Verdict(r.Pass), line)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s%s %s: %d\n",
			indent,
			row.Provider,
			row.Code,
			row.Count,
		)
	}
}

func formatMs(ms float64) string {
	if ms == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fms", ms)
}

func formatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

func formatBytes(b float64) string {
	switch {
	case b == 0:
		return "-"
	case b >= 1<<20:
		return fmt.Sprintf("%.1fMiB", b/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1fKiB", b/(1<<10))
	default:
		return fmt.Sprintf("%.0fB", b)
	}
}
