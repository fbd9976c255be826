// Package aggregate summarizes per-pair results by difficulty tier.
package aggregate

import (
	"vqlbench/internal/bench"
	"vqlbench/internal/score"
	"vqlbench/internal/stats"
)

// Time metrics that can be summarized.
const (
	TimePredictedExec = "predicted_exec"
	TimeTruthExec     = "truth_exec"
	TimeTotalAnswer   = "total_execution_time"
)

// OverallLabel names the bucket holding every result.
const OverallLabel = "overall"

// Options controls aggregation.
type Options struct {
	// TimeMetric selects the per-result timing column. Defaults to
	// TimePredictedExec.
	TimeMetric string
}

// GroupSummary holds the statistics of one bucket. Score columns are means
// on a 0..100 scale.
type GroupSummary struct {
	Label           string
	Count           int
	F1              float64
	PercentMatch    float64
	PercentOverlap  float64
	SetPrecision    float64
	VES             float64
	MatchPercent    float64
	RowMatchPercent float64
	TimeMean        float64
	TimeMedian      float64
	TimeVariance    float64
	TimeStd         float64
	Failures        int
}

// Report is the tiered summary of a run.
type Report struct {
	TimeMetric string
	Groups     []GroupSummary
	Overall    GroupSummary
}

// Summarize groups results by tier in reporting order. Empty tiers are
// omitted; the overall bucket is always present.
func Summarize(results []score.Result, opts Options) Report {
	metric := opts.TimeMetric
	if metric == "" {
		metric = TimePredictedExec
	}
	byTier := make(map[bench.Tier][]score.Result, len(bench.Tiers))
	for _, r := range results {
		if r.Difficulty.Tier == bench.Unclassified {
			continue
		}
		byTier[r.Difficulty.Tier] = append(byTier[r.Difficulty.Tier], r)
	}
	rep := Report{TimeMetric: metric}
	for _, tier := range bench.Tiers {
		members := byTier[tier]
		if len(members) == 0 {
			continue
		}
		rep.Groups = append(rep.Groups, summarize(tier.String(), members, metric))
	}
	rep.Overall = summarize(OverallLabel, results, metric)
	return rep
}

func summarize(label string, results []score.Result, metric string) GroupSummary {
	g := GroupSummary{Label: label, Count: len(results)}
	if len(results) == 0 {
		return g
	}
	n := len(results)
	f1 := make([]float64, 0, n)
	match := make([]float64, 0, n)
	overlap := make([]float64, 0, n)
	setPrecision := make([]float64, 0, n)
	vesScores := make([]float64, 0, n)
	resultsMatch := make([]float64, 0, n)
	sameRows := make([]float64, 0, n)
	var times []float64
	for _, r := range results {
		f1 = append(f1, r.F1*100)
		match = append(match, r.PercentMatch)
		overlap = append(overlap, r.PercentOverlap)
		setPrecision = append(setPrecision, r.SetPrecision)
		vesScores = append(vesScores, r.VES)
		resultsMatch = append(resultsMatch, float64(r.ResultsMatch)*100)
		sameRows = append(sameRows, float64(r.SameRowCount)*100)
		if v := timeOf(r, metric); v > 0 {
			times = append(times, v)
		}
		if r.Failed() {
			g.Failures++
		}
	}
	g.F1 = stats.Mean(f1)
	g.PercentMatch = stats.Mean(match)
	g.PercentOverlap = stats.Mean(overlap)
	g.SetPrecision = stats.Mean(setPrecision)
	g.VES = stats.Mean(vesScores)
	g.MatchPercent = stats.Mean(resultsMatch)
	g.RowMatchPercent = stats.Mean(sameRows)
	t := stats.Summarize(times)
	g.TimeMean, g.TimeMedian, g.TimeVariance, g.TimeStd = t.Mean, t.Median, t.Variance, t.Std
	return g
}

// timeOf returns the selected timing of r in seconds; 0 means not measured.
func timeOf(r score.Result, metric string) float64 {
	switch metric {
	case TimeTruthExec:
		return r.TruthExecSeconds
	case TimeTotalAnswer:
		return r.Timings.Total
	default:
		return r.PredictedExecSeconds
	}
}
