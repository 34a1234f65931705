// Package stats reduces raw call outcomes into distributional statistics.
//
// Everything in this package is pure and deterministic: no I/O, no clocks.
// Inputs may arrive in completion order rather than iteration order, so every
// reduction sorts a private copy before ranking.
package stats

import (
	"math"
	"sort"
)

// Distribution summarizes a list of samples (milliseconds for latency and TTFB).
type Distribution struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95" yaml:"p95"`
	P99    float64 `json:"p99" yaml:"p99"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Count  int     `json:"count" yaml:"count"`
}

// ComputeDistribution returns min, max, population mean and standard deviation
// and nearest-rank percentiles of values. An empty input yields the zero value.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	return Distribution{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
		StdDev: math.Sqrt(variance),
		Count:  n,
	}
}

// percentile picks the nearest-rank element of an ascending slice.
// p*n is evaluated before the division so integral ranks stay exact.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(math.Ceil(p*float64(n)/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// ComputeSuccessRate returns the percentage of successful outcomes rounded to
// two decimals, or 0 for an empty input.
func ComputeSuccessRate(outcomes []CallOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	successes := 0
	for _, o := range outcomes {
		if o.Success {
			successes++
		}
	}
	return round2(float64(successes) / float64(len(outcomes)) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
