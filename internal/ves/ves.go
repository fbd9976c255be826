package ves

import (
	"context"
	"math"

	"vqlbench/internal/bench"
	"vqlbench/internal/executor"
	"vqlbench/internal/stats"
	"vqlbench/internal/util"
)

// DefaultIterations is the number of timing rounds per matched pair.
const DefaultIterations = 3

// Scorer runs the exact-match check and the timing loop.
type Scorer struct {
	Exec        executor.Executor
	Iterations  int
	MaxAttempts int
}

// Result is the efficiency evaluation of one pair.
type Result struct {
	Verdict Verdict
	// Ratios are the raw ground-truth/predicted time ratios.
	Ratios    []float64
	TimeRatio float64
	Reward    float64
	VES       float64
}

// Reward maps a mean time ratio onto the reward tiers. A higher ratio means
// the generated query ran faster than the ground truth.
func Reward(ratio float64) float64 {
	switch {
	case ratio <= 0 || math.IsNaN(ratio):
		return 0
	case ratio >= 2:
		return 1.25
	case ratio >= 1:
		return 1
	case ratio >= 0.5:
		return 0.75
	case ratio >= 0.25:
		return 0.5
	default:
		return 0.25
	}
}

// Scale is the per-pair value averaged into the VES score.
func Scale(reward float64) float64 {
	if reward <= 0 {
		return 0
	}
	return math.Sqrt(reward) * 100
}

// Score confirms the results match, then times both queries. Pairs whose
// results do not match get reward 0 without any timing runs.
func (s *Scorer) Score(ctx context.Context, p bench.QueryPair, seed *Attempt) Result {
	res := Result{Verdict: s.Match(ctx, p, seed)}
	if !res.Verdict.Matched() {
		return res
	}
	iterations := s.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	for i := 1; i <= iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		ratio, ok := s.timeOnce(ctx, p, i, iterations)
		if ok {
			res.Ratios = append(res.Ratios, ratio)
		}
	}
	cleaned := stats.CleanAbnormal(res.Ratios)
	if len(cleaned) > 0 {
		res.TimeRatio = stats.Mean(cleaned)
	}
	res.Reward = Reward(res.TimeRatio)
	res.VES = Scale(res.Reward)
	util.Detailf("pair %s ratios=%v kept=%d time_ratio=%.4f reward=%.2f", p.ID, res.Ratios, len(cleaned), res.TimeRatio, res.Reward)
	return res
}

func (s *Scorer) timeOnce(ctx context.Context, p bench.QueryPair, i, n int) (float64, bool) {
	pred := executor.Run(executor.WithSide(ctx, "predicted"), s.Exec, p.Generated)
	if !pred.OK() {
		util.Warnf("pair %s iteration %d/%d: generated query failed: %v", p.ID, i, n, pred.Err)
		return 0, false
	}
	truth := executor.Run(executor.WithSide(ctx, "truth"), s.Exec, p.GroundTruth)
	if !truth.OK() {
		util.Warnf("pair %s iteration %d/%d: ground truth query failed: %v", p.ID, i, n, truth.Err)
		return 0, false
	}
	predSeconds := pred.Elapsed.Seconds()
	if predSeconds <= 0 {
		util.Warnf("pair %s iteration %d/%d: generated query reported no elapsed time", p.ID, i, n)
		return 0, false
	}
	return truth.Elapsed.Seconds() / predSeconds, true
}
