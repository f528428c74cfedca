package bench

import (
	"slices"
)

// PercentileStats summarizes one metric's samples.
type PercentileStats struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	P50  float64 `json:"p50" yaml:"p50"`
	P95  float64 `json:"p95" yaml:"p95"`
	P99  float64 `json:"p99" yaml:"p99"`
}

// Summarize computes the mean, extremes and nearest-rank percentiles of samples.
//
// An empty input yields all zeros. The input slice is not modified.
func Summarize(samples []float64) PercentileStats {
	if len(samples) == 0 {
		return PercentileStats{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return PercentileStats{
		Mean: sum / float64(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  Percentile(sorted, 0.50),
		P95:  Percentile(sorted, 0.95),
		P99:  Percentile(sorted, 0.99),
	}
}

// Percentile returns the nearest-rank percentile p (between 0 and 1) of an
// ascending slice: the sample at index floor(n*p), clamped to the last index.
//
// It never interpolates, so the result is always an observed sample.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	index = min(max(index, 0), len(sorted)-1)
	return sorted[index]
}
