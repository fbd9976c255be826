package runner

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"vqlbench/internal/bench"
	"vqlbench/internal/config"
	"vqlbench/internal/score"
	"vqlbench/internal/table"
)

var (
	rowsA = table.New([]string{"v"}, []any{1}, []any{2})
	rowsB = table.New([]string{"v", "w"}, []any{1, 1}, []any{3, 3}, []any{4, 4})
)

type fakeExec struct {
	mu      sync.Mutex
	calls   map[string]int
	release chan struct{}
}

func newFakeExec(t *testing.T) *fakeExec {
	f := &fakeExec{calls: map[string]int{}, release: make(chan struct{})}
	t.Cleanup(func() { close(f.release) })
	return f
}

func (f *fakeExec) Execute(_ context.Context, query string) (*table.Table, time.Duration, error) {
	f.mu.Lock()
	f.calls[query]++
	n := f.calls[query]
	f.mu.Unlock()
	switch {
	case query == "fail", query == "flaky" && n == 1:
		return nil, 0, errors.New("connection refused")
	case query == "slow":
		<-f.release
		return rowsA, time.Millisecond, nil
	case query == "panic":
		panic("boom")
	case query == "other":
		return rowsB, 100 * time.Millisecond, nil
	case strings.HasPrefix(query, "truth"):
		return rowsA, 200 * time.Millisecond, nil
	default:
		return rowsA, 100 * time.Millisecond, nil
	}
}

func (f *fakeExec) count(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

func testConfig(mode string) config.Config {
	cfg := config.Default()
	cfg.Evaluation.Mode = mode
	cfg.Evaluation.Workers = 3
	cfg.Evaluation.TimeoutSeconds = 1
	cfg.Evaluation.Iterations = 3
	cfg.Logging.ReportIntervalSeconds = 0
	return cfg
}

func newTestRunner(cfg config.Config, exec *fakeExec, opts ...Option) *Runner {
	r := New(cfg, exec, opts...)
	r.timeout = 150 * time.Millisecond
	return r
}

func TestRunBatchCompleteness(t *testing.T) {
	exec := newFakeExec(t)
	pairs := []bench.QueryPair{
		{Index: 3, Generated: "gen", GroundTruth: "truth"},
		{Index: 1, Generated: "gen", GroundTruth: "truth"},
		{Index: 0, Generated: "gen", GroundTruth: "truth"},
		{Index: 4, Generated: "slow", GroundTruth: "truth"},
		{Index: 2, Generated: "fail", GroundTruth: "truth"},
	}
	var progress [][2]int
	r := newTestRunner(testConfig(config.ModeF1), exec, WithProgress(func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}))
	results, err := r.Run(context.Background(), pairs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != len(pairs) {
		t.Fatalf("expected %d results, got %d", len(pairs), len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Fatalf("results not sorted: position %d has index %d", i, res.Index)
		}
		switch i {
		case 2:
			if res.Failure != score.FailureAdapter || res.F1 != 0 {
				t.Fatalf("failing pair should degrade to zero: %+v", res)
			}
		case 4:
			if res.Failure != score.FailureTimeout || res.F1 != 0 || res.ID != "4" {
				t.Fatalf("slow pair should time out: %+v", res)
			}
		default:
			if res.Failed() || res.F1 != 1 || res.PercentOverlap != 100 || res.SameRowCount != 1 {
				t.Fatalf("healthy pair %d affected: %+v", i, res)
			}
		}
	}
	if r.Completed() != len(pairs) {
		t.Fatalf("completed=%d", r.Completed())
	}
	if len(progress) != len(pairs) || progress[len(progress)-1] != [2]int{5, 5} {
		t.Fatalf("unexpected progress calls: %v", progress)
	}
}

func TestRunCombinedReusesFirstExecution(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeCombined), exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{
		{Index: 0, ID: "q0", Generated: "gen", GroundTruth: "truth", Difficulty: bench.Difficulty{Tier: bench.Simple}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := results[0]
	if res.F1 != 1 || res.ResultsMatch != 1 || res.MatchVerdict != "matched" {
		t.Fatalf("unexpected scores: %+v", res)
	}
	if res.Reward != 1.25 || math.Abs(res.VES-math.Sqrt(1.25)*100) > 1e-9 {
		t.Fatalf("unexpected efficiency: reward=%v ves=%v", res.Reward, res.VES)
	}
	// one shared execution plus three timing rounds
	if exec.count("gen") != 4 || exec.count("truth") != 4 {
		t.Fatalf("unexpected executions gen=%d truth=%d", exec.count("gen"), exec.count("truth"))
	}
	if res.PredictedExecSeconds != 0.1 || res.TruthExecSeconds != 0.2 {
		t.Fatalf("unexpected exec seconds: %v %v", res.PredictedExecSeconds, res.TruthExecSeconds)
	}
}

func TestRunCombinedRecoversFromFailedFirstExecution(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeCombined), exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{
		{Index: 0, ID: "q0", Generated: "flaky", GroundTruth: "truth"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := results[0]
	if res.Failed() || res.FailureDetail != "" {
		t.Fatalf("a match confirmed on retry is not a failure: %+v", res)
	}
	if res.ResultsMatch != 1 || res.F1 != 1 || res.PercentMatch != 100 || res.SetPrecision != 100 {
		t.Fatalf("accuracy should describe the matching attempt: %+v", res)
	}
	if res.SameRowCount != 1 || res.PredictedExecSeconds != 0.1 || res.Reward != 1.25 {
		t.Fatalf("unexpected shape or efficiency: %+v", res)
	}
	// failed first execution, the retry attempt, three timing rounds
	if exec.count("flaky") != 5 {
		t.Fatalf("unexpected executions flaky=%d", exec.count("flaky"))
	}
}

func TestExpiredPrefersFinishedResult(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeF1), exec)
	p := bench.QueryPair{Index: 0, ID: "q0", Generated: "gen", GroundTruth: "truth"}

	done := make(chan score.Result, 1)
	done <- score.Result{Index: 0, ID: "q0", F1: 1}
	if got := r.expired(context.Background(), p, done); got.Failed() || got.F1 != 1 {
		t.Fatalf("finished result should win over the deadline: %+v", got)
	}
	if got := r.expired(context.Background(), p, done); got.Failure != score.FailureTimeout {
		t.Fatalf("expected timeout, got %+v", got)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := r.expired(ctx, p, done); got.Failure != score.FailureAborted {
		t.Fatalf("expected aborted, got %+v", got)
	}
}

func TestRunVESMismatch(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeVES), exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{
		{Index: 0, Generated: "other", GroundTruth: "truth"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := results[0]
	if res.ResultsMatch != 0 || res.MatchVerdict != "mismatch" || res.Reward != 0 {
		t.Fatalf("expected mismatch: %+v", res)
	}
	if res.Failed() {
		t.Fatalf("a genuine mismatch is not a failure: %+v", res)
	}
	if res.SameRowCount != 0 || res.SameColumnCount != 0 || res.PredictedRows != 3 || res.TruthRows != 2 {
		t.Fatalf("unexpected structure flags: %+v", res)
	}
}

func TestRunIsolatesPanics(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeF1), exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{
		{Index: 0, ID: "a", Generated: "panic", GroundTruth: "truth"},
		{Index: 1, ID: "b", Generated: "gen", GroundTruth: "truth"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Failure != score.FailurePanic || results[0].ID != "a" {
		t.Fatalf("expected panic result for a: %+v", results[0])
	}
	if results[1].Failed() || results[1].F1 != 1 {
		t.Fatalf("sibling should be unaffected: %+v", results[1])
	}
}

func TestRunEmptyQueryText(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeCombined), exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{{Index: 0, Generated: " ", GroundTruth: "truth"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Failure != score.FailureAdapter || exec.count("truth") != 0 {
		t.Fatalf("empty query should fail without executing: %+v", results[0])
	}
}

func TestRunRejectsInvalidBatch(t *testing.T) {
	exec := newFakeExec(t)
	cases := []struct {
		name  string
		edit  func(r *Runner)
		pairs []bench.QueryPair
	}{
		{
			name:  "workers",
			edit:  func(r *Runner) { r.cfg.Evaluation.Workers = 0 },
			pairs: []bench.QueryPair{{Index: 0, Generated: "gen", GroundTruth: "truth"}},
		},
		{
			name:  "timeout",
			edit:  func(r *Runner) { r.timeout = 0 },
			pairs: []bench.QueryPair{{Index: 0, Generated: "gen", GroundTruth: "truth"}},
		},
		{
			name: "duplicate index",
			edit: func(*Runner) {},
			pairs: []bench.QueryPair{
				{Index: 1, ID: "a", Generated: "gen", GroundTruth: "truth"},
				{Index: 1, ID: "b", Generated: "gen", GroundTruth: "truth"},
			},
		},
	}
	for _, c := range cases {
		r := newTestRunner(testConfig(config.ModeF1), exec)
		c.edit(r)
		results, err := r.Run(context.Background(), c.pairs)
		if !errors.Is(err, ErrBatchAbort) || !errors.Is(err, bench.ErrInvalidInput) {
			t.Fatalf("%s: expected batch abort, got %v", c.name, err)
		}
		if results != nil {
			t.Fatalf("%s: expected no results", c.name)
		}
	}
	if exec.count("gen") != 0 {
		t.Fatalf("aborted batches should not execute queries")
	}
}

func TestRunCanceledBatchIsFullyZeroed(t *testing.T) {
	exec := newFakeExec(t)
	r := newTestRunner(testConfig(config.ModeCombined), exec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pairs := []bench.QueryPair{
		{Index: 1, Generated: "gen", GroundTruth: "truth"},
		{Index: 0, Generated: "gen", GroundTruth: "truth"},
	}
	results, err := r.Run(ctx, pairs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected a full result set, got %d", len(results))
	}
	for i, res := range results {
		if res.Index != i || res.Failure != score.FailureAborted || res.F1 != 0 || res.ResultsMatch != 0 {
			t.Fatalf("expected zeroed aborted result at %d: %+v", i, res)
		}
	}
}

func TestRunSyntaxPrecheck(t *testing.T) {
	exec := newFakeExec(t)
	cfg := testConfig(config.ModeF1)
	cfg.Evaluation.ValidateSQL = true
	r := newTestRunner(cfg, exec)
	results, err := r.Run(context.Background(), []bench.QueryPair{
		{Index: 0, Generated: "SELECT v FROM t WHERE v = 1", GroundTruth: "truth"},
		{Index: 1, Generated: "SELEC v FRM t", GroundTruth: "truth"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].SyntaxValid == nil || !*results[0].SyntaxValid || results[0].GeneratedDigest == "" {
		t.Fatalf("expected valid syntax with digest: %+v", results[0])
	}
	if results[1].SyntaxValid == nil || *results[1].SyntaxValid {
		t.Fatalf("expected invalid syntax: %+v", results[1])
	}
	if results[1].F1 != 1 {
		t.Fatalf("pre-check must not change scores: %+v", results[1])
	}
}

func TestCompactSQL(t *testing.T) {
	if got := compactSQL("SELECT  a\n FROM\tt", 0); got != "SELECT a FROM t" {
		t.Fatalf("compactSQL=%q", got)
	}
	if got := compactSQL("SELECT abcdef", 6); got != "SELECT..." {
		t.Fatalf("compactSQL truncation=%q", got)
	}
	if got := compactSQL("SELECT  'é'", 9); got != "SELECT '..." {
		t.Fatalf("compactSQL split a rune: %q", got)
	}
}
