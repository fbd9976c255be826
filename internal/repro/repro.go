// Package repro re-scores selected pairs of a finished run.
package repro

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"vqlbench/internal/bench"
	"vqlbench/internal/config"
	"vqlbench/internal/report"
	"vqlbench/internal/runner"
	"vqlbench/internal/score"
)

// DetailsFile is the per-pair report read from a run directory.
const DetailsFile = "details.json"

// Options selects the pairs to re-score.
type Options struct {
	RunDir string
	// IDs restricts the selection; empty selects every pair.
	IDs []string
	// OnlyFailed keeps pairs that degraded to a failure or scored zero on
	// the scores their recorded mode produced.
	OnlyFailed bool
}

// Recorded is what the run reported for a pair.
type Recorded struct {
	F1           float64
	ResultsMatch int
	Reward       float64
	Failure      string
}

// Case is one pair of a finished run.
type Case struct {
	Pair     bench.QueryPair
	Recorded Recorded
}

// Comparison holds a recorded outcome next to a fresh evaluation.
type Comparison struct {
	Case
	Current score.Result
}

// Changed reports whether the fresh evaluation disagrees with the run.
func (c Comparison) Changed() bool {
	return c.Current.F1 != c.Recorded.F1 ||
		c.Current.ResultsMatch != c.Recorded.ResultsMatch ||
		c.Current.Reward != c.Recorded.Reward ||
		string(c.Current.Failure) != c.Recorded.Failure
}

var detailColumns = bench.Columns{
	Generated:   "generated",
	GroundTruth: "ground_truth",
	Difficulty:  "difficulty",
	Index:       "index",
	ID:          "id",
	Question:    "question",
}

// LoadCases reads the selected pairs from the run's details.json.
func LoadCases(opts Options) ([]Case, error) {
	if opts.RunDir == "" {
		return nil, errors.New("run_dir is required")
	}
	data, err := os.ReadFile(filepath.Join(opts.RunDir, DetailsFile))
	if err != nil {
		return nil, errors.Wrap(err, "read run details")
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode run details")
	}
	pairs, err := bench.FromRecords(records, detailColumns)
	if err != nil {
		return nil, err
	}
	mode, err := recordedMode(opts.RunDir)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(opts.IDs))
	for _, id := range opts.IDs {
		wanted[id] = true
	}
	var cases []Case
	for i, p := range pairs {
		if len(wanted) > 0 && !wanted[p.ID] {
			continue
		}
		rec := recordedFrom(records[i])
		if opts.OnlyFailed && !rec.scoredZero(mode) {
			continue
		}
		cases = append(cases, Case{Pair: p, Recorded: rec})
		delete(wanted, p.ID)
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return nil, errors.Errorf("pairs %v not found in %s", missing, opts.RunDir)
	}
	return cases, nil
}

// recordedMode reads the evaluation mode from run.json. Runs without one are
// treated as combined.
func recordedMode(runDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(runDir, report.MetaFile))
	if errors.Is(err, os.ErrNotExist) {
		return config.ModeCombined, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read run metadata")
	}
	var meta report.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", errors.Wrap(err, "decode run metadata")
	}
	if meta.Mode == "" {
		return config.ModeCombined, nil
	}
	return meta.Mode, nil
}

func (r Recorded) scoredZero(mode string) bool {
	if r.Failure != "" {
		return true
	}
	switch mode {
	case config.ModeF1:
		return r.F1 <= 0
	case config.ModeVES:
		return r.ResultsMatch <= 0
	default:
		return r.F1 <= 0 || r.ResultsMatch <= 0
	}
}

func recordedFrom(rec map[string]any) Recorded {
	var out Recorded
	if v, ok := rec["f1"].(float64); ok {
		out.F1 = v
	}
	if v, ok := rec["results_match"].(float64); ok {
		out.ResultsMatch = int(v)
	}
	if v, ok := rec["reward"].(float64); ok {
		out.Reward = v
	}
	if v, ok := rec["failure"].(string); ok {
		out.Failure = v
	}
	return out
}

// Run re-scores the cases with r and pairs each with its recorded outcome.
func Run(ctx context.Context, r *runner.Runner, cases []Case) ([]Comparison, error) {
	pairs := make([]bench.QueryPair, 0, len(cases))
	byIndex := make(map[int]Case, len(cases))
	for _, c := range cases {
		pairs = append(pairs, c.Pair)
		byIndex[c.Pair.Index] = c
	}
	results, err := r.Run(ctx, pairs)
	if err != nil {
		return nil, err
	}
	out := make([]Comparison, 0, len(results))
	for _, res := range results {
		out = append(out, Comparison{Case: byIndex[res.Index], Current: res})
	}
	return out, nil
}
