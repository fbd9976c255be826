// Package ves scores the relative execution speed of result-equivalent
// queries.
package ves

import (
	"context"

	"vqlbench/internal/bench"
	"vqlbench/internal/compare"
	"vqlbench/internal/executor"
	"vqlbench/internal/table"
	"vqlbench/internal/util"
)

// DefaultMaxAttempts bounds the exact-match retry loop.
const DefaultMaxAttempts = 5

// State is a step of the exact-match retry loop.
type State int

// Match states. Matched, Mismatched and Exhausted are terminal.
const (
	Pending State = iota
	Retrying
	Matched
	Mismatched
	Exhausted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Retrying:
		return "retrying"
	case Matched:
		return "matched"
	case Mismatched:
		return "mismatch"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Attempt holds both executions of one exact-match attempt.
type Attempt struct {
	Predicted table.Outcome
	Truth     table.Outcome
}

func (a *Attempt) usable() bool {
	return a != nil && a.Predicted.OK() && a.Predicted.Table != nil && a.Truth.OK() && a.Truth.Table != nil
}

// Verdict is the terminal state of the exact-match loop.
type Verdict struct {
	State    State
	Attempts int
	// Reason describes the last failed attempt for Exhausted verdicts.
	Reason string
	// Last is the final attempt that produced both tables, if any.
	Last *Attempt
}

// Matched reports whether the results were confirmed equal.
func (v Verdict) Matched() bool {
	return v.State == Matched
}

// ResultsMatch returns 1 for a confirmed match, else 0.
func (v Verdict) ResultsMatch() int {
	if v.Matched() {
		return 1
	}
	return 0
}

// Match executes both queries until their result sets are confirmed equal or
// differ. A failed execution or an absent table moves to the next attempt;
// a genuine difference ends the loop at once. seed, when usable, stands in for
// the first attempt.
func (s *Scorer) Match(ctx context.Context, p bench.QueryPair, seed *Attempt) Verdict {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	v := Verdict{State: Pending}
	for v.State == Pending || v.State == Retrying {
		if v.Attempts >= maxAttempts {
			v.State = Exhausted
			break
		}
		if err := ctx.Err(); err != nil {
			v.State = Exhausted
			v.Reason = err.Error()
			break
		}
		v.Attempts++
		var attempt *Attempt
		if v.Attempts == 1 && seed.usable() {
			attempt = seed
		} else {
			attempt = s.attempt(ctx, p)
		}
		if reason := attemptFailure(attempt); reason != "" {
			v.Reason = reason
			v.State = Retrying
			util.Detailf("pair %s attempt %d/%d: %s", p.ID, v.Attempts, maxAttempts, reason)
			continue
		}
		v.Last = attempt
		if compare.ExactMatch(attempt.Predicted.Table, attempt.Truth.Table) {
			v.State = Matched
		} else {
			v.State = Mismatched
		}
	}
	switch v.State {
	case Mismatched:
		util.Infof("pair %s results differ reason=mismatch attempts=%d", p.ID, v.Attempts)
	case Exhausted:
		util.Warnf("pair %s no usable comparison reason=exhausted attempts=%d last=%s", p.ID, v.Attempts, v.Reason)
	}
	return v
}

func (s *Scorer) attempt(ctx context.Context, p bench.QueryPair) *Attempt {
	a := &Attempt{}
	a.Predicted = executor.Run(executor.WithSide(ctx, "predicted"), s.Exec, p.Generated)
	if !a.Predicted.OK() || a.Predicted.Table == nil {
		return a
	}
	a.Truth = executor.Run(executor.WithSide(ctx, "truth"), s.Exec, p.GroundTruth)
	return a
}

func attemptFailure(a *Attempt) string {
	switch {
	case !a.Predicted.OK():
		return "generated query failed: " + a.Predicted.Err.Error()
	case a.Predicted.Table == nil:
		return "generated query returned no table"
	case !a.Truth.OK():
		return "ground truth query failed: " + a.Truth.Err.Error()
	case a.Truth.Table == nil:
		return "ground truth query returned no table"
	}
	return ""
}
