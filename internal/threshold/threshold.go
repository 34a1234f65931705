// Package threshold turns assertions such as "latency:p95 < 500" into a
// pass/fail verdict over the per-pair summaries of a finished run.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/provbench/internal/stats"
)

// Threshold represents a performance assertion that can pass or fail.
// It holds for a run when it holds for every (provider, scenario) pair in
// scope.
type Threshold struct {
	Metric    string  // e.g., "latency", "success_rate"
	Aggregate string  // e.g., "p95", "avg"; empty for scalar metrics
	Provider  string  // optional scope
	Scenario  string  // optional scope
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64 // worst value across the pairs in scope
	Pair      string  // provider/scenario that produced Actual
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against run summaries.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided summaries.
func (e *Evaluator) Evaluate(summaries []stats.ScenarioSummary) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, summaries))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, summaries []stats.ScenarioSummary) Result {
	var (
		matched bool
		worst   float64
		pair    string
		pass    = true
	)
	for _, s := range summaries {
		if !t.inScope(s) {
			continue
		}
		actual, err := extractMetricValue(t, s)
		if err != nil {
			return Result{
				Threshold: t,
				Pass:      false,
				Message:   fmt.Sprintf("error: %v", err),
			}
		}
		ok := compareValues(actual, t.Operator, t.Value)
		if !matched || worse(actual, worst, t.Operator) || (!ok && pass) {
			worst = actual
			pair = s.Provider + "/" + s.Scenario
		}
		matched = true
		pass = pass && ok
	}

	if !matched {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: no results in scope", t.Raw),
		}
	}

	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f (%s)", status, t.Raw, worst, t.Operator, t.Value, pair)
	return Result{
		Threshold: t,
		Actual:    worst,
		Pair:      pair,
		Pass:      pass,
		Message:   message,
	}
}

func (t Threshold) inScope(s stats.ScenarioSummary) bool {
	if t.Provider != "" && !strings.EqualFold(t.Provider, s.Provider) {
		return false
	}
	if t.Scenario != "" && !strings.EqualFold(t.Scenario, s.Scenario) {
		return false
	}
	return true
}

// worse reports whether a is further from passing than b.
func worse(a, b float64, operator string) bool {
	switch operator {
	case "<", "<=":
		return a > b
	case ">", ">=":
		return a < b
	default:
		return false
	}
}

var pattern = regexp.MustCompile(`^([a-z_]+)(?::([a-z0-9]+))?(?:\[([A-Za-z0-9_\-]+)(?:/([A-Za-z0-9_\-]+))?\])?\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency:p95 < 500"              (latency percentile in ms)
// - "ttfb:median < 200"              (time to first byte in ms)
// - "latency:p99[alchemy] < 800"     (only alchemy pairs)
// - "success_rate >= 99"             (percent, per pair)
// - "success_rate[codex/tokenPrices] > 90"
// - "failures < 1"                   (failed requests per pair)
// - "throughput > 2"                 (requests per second per pair)
// - "payload:avg < 65536"            (bytes)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric[:aggregate][[provider[/scenario]]] operator value, e.g., 'latency:p95 < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[5]
	valueStr := matches[6]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	// Validate metric
	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: latency, ttfb, success_rate, failures, throughput, payload)", metric)
	}

	// Validate aggregate
	if aggregate == "" {
		aggregate = defaultAggregate(metric)
	}
	if !isValidAggregate(metric, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s", aggregate, metric)
	}

	// Validate operator
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Provider:  matches[3],
		Scenario:  matches[4],
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var aggregates = map[string][]string{
	"latency":      {"p50", "median", "p95", "p99", "avg", "mean", "min", "max", "stddev"},
	"ttfb":         {"p50", "median", "p95", "p99", "avg", "mean", "min", "max", "stddev"},
	"payload":      {"avg"},
	"success_rate": {"value"},
	"failures":     {"count"},
	"throughput":   {"rate"},
}

var defaultAggregates = map[string]string{
	"latency":      "avg",
	"ttfb":         "avg",
	"payload":      "avg",
	"success_rate": "value",
	"failures":     "count",
	"throughput":   "rate",
}

func defaultAggregate(metric string) string {
	return defaultAggregates[metric]
}

func isValidMetric(metric string) bool {
	_, ok := aggregates[metric]
	return ok
}

func isValidAggregate(metric, aggregate string) bool {
	for _, v := range aggregates[metric] {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, s stats.ScenarioSummary) (float64, error) {
	switch t.Metric {
	case "latency":
		return extractDistribution(t.Aggregate, s.Latency)
	case "ttfb":
		return extractDistribution(t.Aggregate, s.TTFB)
	case "payload":
		return s.AvgPayloadBytes, nil
	case "success_rate":
		return s.SuccessRatePercent, nil
	case "failures":
		return float64(s.TotalRequests - s.Successes), nil
	case "throughput":
		return s.ThroughputReqPerSec, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractDistribution(aggregate string, d stats.Distribution) (float64, error) {
	switch aggregate {
	case "p50", "median":
		return d.Median, nil
	case "p95":
		return d.P95, nil
	case "p99":
		return d.P99, nil
	case "avg", "mean":
		return d.Mean, nil
	case "min":
		return d.Min, nil
	case "max":
		return d.Max, nil
	case "stddev":
		return d.StdDev, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
