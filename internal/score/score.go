// Package score defines the per-pair evaluation result.
package score

import "vqlbench/internal/bench"

// Failure explains why a result carries zero scores.
type Failure string

// Failure reasons.
const (
	FailureNone       Failure = ""
	FailureTimeout    Failure = "timeout"
	FailureAdapter    Failure = "adapter_error"
	FailureComparison Failure = "comparison_error"
	FailurePanic      Failure = "panic"
	FailureAborted    Failure = "aborted"
)

// Result is the evaluation of one query pair. It is built once by the worker
// that evaluated the pair and not modified afterwards.
type Result struct {
	Index      int
	ID         string
	Question   string
	Difficulty bench.Difficulty
	// Generated and GroundTruth are the evaluated statements.
	Generated   string
	GroundTruth string

	F1             float64
	PercentMatch   float64
	PercentOverlap float64
	SetPrecision   float64
	AllMatches     [][]string
	AllSetMatches  [][]string

	ResultsMatch int
	MatchVerdict string
	TimeRatio    float64
	Reward       float64
	VES          float64

	SameRowCount     int
	SameColumnCount  int
	PredictedRows    int
	PredictedColumns int
	TruthRows        int
	TruthColumns     int

	PredictedExecSeconds float64
	TruthExecSeconds     float64

	SyntaxValid     *bool
	GeneratedDigest string
	Timings         bench.GenerationTimings

	Failure       Failure
	FailureDetail string
}

// Zero builds a failed result that keeps the pair identity.
func Zero(p bench.QueryPair, reason Failure, detail string) Result {
	r := Base(p)
	r.Failure = reason
	r.FailureDetail = detail
	return r
}

// Base copies the pair identity into an empty result.
func Base(p bench.QueryPair) Result {
	return Result{
		Index:       p.Index,
		ID:          p.ID,
		Question:    p.Question,
		Difficulty:  p.Difficulty,
		Generated:   p.Generated,
		GroundTruth: p.GroundTruth,
		Timings:     p.Timings,
	}
}

// Failed reports whether the result degraded to a failure.
func (r Result) Failed() bool {
	return r.Failure != FailureNone
}
