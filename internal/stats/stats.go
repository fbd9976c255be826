// Package stats provides the summary statistics used for timing columns and the
// outlier filter applied to timing ratios.
package stats

import (
	"math"
	"sort"
)

// outlierSigma is the half-width of the accepted band in standard deviations.
const outlierSigma = 3

// minCleanSamples is the smallest sample CleanAbnormal filters.
const minCleanSamples = 4

// Mean returns the arithmetic mean, 0 for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Median returns the middle value, averaging the two middle values for even
// sample sizes.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Variance returns the population variance.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// Std returns the population standard deviation.
func Std(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Summary bundles the four timing statistics.
type Summary struct {
	Mean     float64
	Median   float64
	Variance float64
	Std      float64
}

// Summarize computes mean, median, variance and std in one call.
func Summarize(xs []float64) Summary {
	return Summary{
		Mean:     Mean(xs),
		Median:   Median(xs),
		Variance: Variance(xs),
		Std:      Std(xs),
	}
}

// CleanAbnormal drops samples outside mean ± 3σ. Each sample is judged
// against the mean and population σ of the remaining samples. The band is
// inclusive. Samples of three or fewer are returned unchanged, as a plain
// 3σ band can never reject one of them. The input slice is not modified.
func CleanAbnormal(xs []float64) []float64 {
	if len(xs) < minCleanSamples {
		return append([]float64(nil), xs...)
	}
	n := float64(len(xs))
	sum, sumSq := 0.0, 0.0
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	kept := make([]float64, 0, len(xs))
	for _, x := range xs {
		restN := n - 1
		mean := (sum - x) / restN
		variance := (sumSq-x*x)/restN - mean*mean
		if variance < 0 {
			variance = 0
		}
		band := outlierSigma * math.Sqrt(variance)
		if x >= mean-band-epsilon(mean) && x <= mean+band+epsilon(mean) {
			kept = append(kept, x)
		}
	}
	return kept
}

// epsilon absorbs float rounding in the running sums.
func epsilon(scale float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(scale))
}
