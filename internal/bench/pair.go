// Package bench loads the benchmark: the (generated, ground-truth) query pairs
// with their difficulty labels.
package bench

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrInvalidInput marks a benchmark that cannot be evaluated at all.
var ErrInvalidInput = errors.New("invalid benchmark input")

// GenerationTimings are the answer-service timings recorded when the
// generated query was produced. They are carried through to the report.
type GenerationTimings struct {
	SQLExecution      float64 `json:"sql_execution_time" yaml:"sql_execution_time"`
	VectorStoreSearch float64 `json:"vector_store_search_time" yaml:"vector_store_search_time"`
	LLM               float64 `json:"llm_time" yaml:"llm_time"`
	Total             float64 `json:"total_execution_time" yaml:"total_execution_time"`
}

// QueryPair is one evaluation unit. Index is the position in the input and the
// ordering key for every result derived from the pair.
type QueryPair struct {
	Index       int
	ID          string
	Question    string
	Generated   string
	GroundTruth string
	Difficulty  Difficulty
	Timings     GenerationTimings
}

// Validate rejects batches with negative or duplicate indices and missing or
// duplicate identifiers. Empty query text is a per-pair failure, not a batch
// error.
func Validate(pairs []QueryPair) error {
	seenIndex := make(map[int]struct{}, len(pairs))
	seenID := make(map[string]struct{}, len(pairs))
	for i, p := range pairs {
		if p.Index < 0 {
			return errors.Wrapf(ErrInvalidInput, "pair %d has negative index %d", i, p.Index)
		}
		if _, ok := seenIndex[p.Index]; ok {
			return errors.Wrapf(ErrInvalidInput, "duplicate pair index %d", p.Index)
		}
		seenIndex[p.Index] = struct{}{}
		if p.ID == "" {
			return errors.Wrapf(ErrInvalidInput, "pair %d has no identifier", p.Index)
		}
		if _, ok := seenID[p.ID]; ok {
			return errors.Wrapf(ErrInvalidInput, "duplicate pair id %q", p.ID)
		}
		seenID[p.ID] = struct{}{}
	}
	return nil
}

// Normalize assigns missing identifiers from the index. Pairs are copied.
func Normalize(pairs []QueryPair) []QueryPair {
	out := make([]QueryPair, len(pairs))
	for i, p := range pairs {
		if p.ID == "" {
			p.ID = strconv.Itoa(p.Index)
		}
		out[i] = p
	}
	return out
}
