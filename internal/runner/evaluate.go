package runner

import (
	"context"
	"strings"

	"vqlbench/internal/bench"
	"vqlbench/internal/compare"
	"vqlbench/internal/config"
	"vqlbench/internal/executor"
	"vqlbench/internal/score"
	"vqlbench/internal/table"
	"vqlbench/internal/util"
	"vqlbench/internal/ves"
)

const (
	sidePredicted = "predicted"
	sideTruth     = "truth"
)

// evaluate runs the configured scoring mode for one pair. In combined mode
// the executions of the accuracy pass seed the first exact-match attempt.
func (r *Runner) evaluate(ctx context.Context, p bench.QueryPair) score.Result {
	if strings.TrimSpace(p.Generated) == "" || strings.TrimSpace(p.GroundTruth) == "" {
		util.Warnf("pair %s reason=empty_query generated=%q truth=%q", p.ID, compactSQL(p.Generated, 0), compactSQL(p.GroundTruth, 0))
		return score.Zero(p, score.FailureAdapter, "empty query text")
	}
	res := score.Base(p)
	r.precheck(&res, p)
	switch r.cfg.Evaluation.Mode {
	case config.ModeF1:
		r.scoreAccuracy(ctx, p, &res)
	case config.ModeVES:
		r.scoreEfficiency(ctx, p, &res, nil)
	default:
		seed := r.scoreAccuracy(ctx, p, &res)
		r.scoreEfficiency(ctx, p, &res, seed)
	}
	return res
}

func (r *Runner) precheck(res *score.Result, p bench.QueryPair) {
	if r.validator == nil {
		return
	}
	c := r.validator.Check(p.Generated)
	valid := c.Valid
	res.SyntaxValid = &valid
	res.GeneratedDigest = c.Digest
	if !valid {
		util.Detailf("pair %s generated statement does not parse as SQL: %v", p.ID, c.Err)
	}
}

// scoreAccuracy executes both queries once and fills the comparison scores
// and structural flags. The executions are returned for reuse.
func (r *Runner) scoreAccuracy(ctx context.Context, p bench.QueryPair, res *score.Result) *ves.Attempt {
	attempt := &ves.Attempt{
		Predicted: executor.Run(executor.WithSide(ctx, sidePredicted), r.exec, p.Generated),
		Truth:     executor.Run(executor.WithSide(ctx, sideTruth), r.exec, p.GroundTruth),
	}
	applyAccuracy(p, res, attempt)
	return attempt
}

func applyAccuracy(p bench.QueryPair, res *score.Result, a *ves.Attempt) {
	pred, truth := a.Predicted, a.Truth
	applyShape(res, pred, truth)
	if err := firstErr(pred, truth); err != nil {
		util.Warnf("pair %s reason=%s: %v", p.ID, executor.Reason(err), err)
		res.Failure = score.FailureAdapter
		res.FailureDetail = err.Error()
		return
	}
	if pred.Table == nil || truth.Table == nil {
		util.Warnf("pair %s reason=no_table predicted=%t truth=%t", p.ID, pred.Table != nil, truth.Table != nil)
		return
	}
	scores, err := compare.Compare(pred.Table, truth.Table)
	if err != nil {
		util.Warnf("pair %s reason=comparison_error: %v sql=%s", p.ID, err, compactSQL(p.Generated, 0))
		res.Failure = score.FailureComparison
		res.FailureDetail = err.Error()
		return
	}
	res.F1 = scores.F1
	res.PercentMatch = scores.PercentMatch
	res.SetPrecision = scores.SetPrecision
	res.AllMatches = scores.AllMatches
	res.AllSetMatches = scores.AllSetMatches
	res.PercentOverlap = scores.PercentOverlap
}

// scoreEfficiency runs the exact-match loop and timing rounds. Without a
// seed, the structural flags come from the last attempt that produced both
// tables. A seed the loop could not use is replaced by the attempt that
// settled the verdict, so the accuracy scores describe the same executions.
func (r *Runner) scoreEfficiency(ctx context.Context, p bench.QueryPair, res *score.Result, seed *ves.Attempt) {
	out := r.scorer.Score(ctx, p, seed)
	res.ResultsMatch = out.Verdict.ResultsMatch()
	res.MatchVerdict = out.Verdict.State.String()
	res.TimeRatio = out.TimeRatio
	res.Reward = out.Reward
	res.VES = out.VES
	if seed != nil {
		if last := out.Verdict.Last; last != nil && last != seed {
			util.Infof("pair %s accuracy rescored from attempt %d", p.ID, out.Verdict.Attempts)
			res.Failure = score.FailureNone
			res.FailureDetail = ""
			applyAccuracy(p, res, last)
		}
		return
	}
	if out.Verdict.Last != nil {
		applyShape(res, out.Verdict.Last.Predicted, out.Verdict.Last.Truth)
		return
	}
	if out.Verdict.State == ves.Exhausted && ctx.Err() == nil {
		res.Failure = score.FailureAdapter
		res.FailureDetail = out.Verdict.Reason
	}
}

func applyShape(res *score.Result, pred, truth table.Outcome) {
	shape := compare.Structure(pred, truth)
	res.SameRowCount = shape.SameRowCount
	res.SameColumnCount = shape.SameColumnCount
	res.PredictedRows = pred.RowCount()
	res.PredictedColumns = pred.ColumnCount()
	res.TruthRows = truth.RowCount()
	res.TruthColumns = truth.ColumnCount()
	res.PredictedExecSeconds = pred.Seconds()
	res.TruthExecSeconds = truth.Seconds()
}

func firstErr(outcomes ...table.Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
