package runner

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"vqlbench/internal/bench"
	"vqlbench/internal/config"
	"vqlbench/internal/executor"
	"vqlbench/internal/metrics"
	"vqlbench/internal/score"
	"vqlbench/internal/util"
	"vqlbench/internal/validator"
	"vqlbench/internal/ves"
)

// Progress is called after each pair finishes, whatever its outcome.
type Progress func(done, total int)

// Runner dispatches query pairs to a bounded worker pool and scores them.
type Runner struct {
	cfg       config.Config
	exec      executor.Executor
	validator *validator.Validator
	scorer    *ves.Scorer
	metrics   *metrics.Metrics
	progress  Progress
	timeout   time.Duration

	completed atomic.Int64
	total     atomic.Int64
	failures  atomic.Int64
	timeouts  atomic.Int64
	started   time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithProgress installs a progress callback.
func WithProgress(fn Progress) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithValidator overrides the SQL pre-check parser.
func WithValidator(v *validator.Validator) Option {
	return func(r *Runner) { r.validator = v }
}

// New constructs a Runner for the given config and executor.
func New(cfg config.Config, exec executor.Executor, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		exec:    exec,
		timeout: time.Duration(cfg.Evaluation.TimeoutSeconds) * time.Second,
		scorer: &ves.Scorer{
			Exec:        exec,
			Iterations:  cfg.Evaluation.Iterations,
			MaxAttempts: cfg.Evaluation.MatchAttempts,
		},
	}
	if cfg.Evaluation.ValidateSQL {
		r.validator = validator.New()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Completed returns the number of pairs finished in the current run.
func (r *Runner) Completed() int {
	return int(r.completed.Load())
}

type indexedResult struct {
	pos int
	res score.Result
}

// Run scores every pair and returns exactly one result per pair, sorted by
// index. Per-pair failures degrade to zero results. Only batch setup errors
// and cancellation of ctx are returned; on cancellation every pair is
// reported as aborted.
func (r *Runner) Run(ctx context.Context, pairs []bench.QueryPair) ([]score.Result, error) {
	workers := r.cfg.Evaluation.Workers
	if workers < 1 {
		return nil, abort(errors.Wrapf(bench.ErrInvalidInput, "workers must be >= 1, got %d", workers))
	}
	if r.timeout <= 0 {
		return nil, abort(errors.Wrapf(bench.ErrInvalidInput, "timeout must be positive, got %s", r.timeout))
	}
	ordered := bench.Normalize(pairs)
	if err := bench.Validate(ordered); err != nil {
		return nil, abort(err)
	}
	slices.SortStableFunc(ordered, func(a, b bench.QueryPair) int { return a.Index - b.Index })

	r.completed.Store(0)
	r.failures.Store(0)
	r.timeouts.Store(0)
	r.total.Store(int64(len(ordered)))
	r.started = time.Now()
	util.Infof("evaluating %d pairs mode=%s workers=%d timeout=%s", len(ordered), r.cfg.Evaluation.Mode, workers, r.timeout)
	stopStats := r.startStatsLogger()
	defer stopStats()

	out := make(chan indexedResult, len(ordered))
	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for pos, p := range ordered {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out <- indexedResult{pos: pos, res: r.runPair(ctx, p)}
				return nil
			})
		}
		_ = g.Wait()
		close(out)
	}()

	results := make([]score.Result, len(ordered))
	filled := 0
	interrupted := false
	for item := range out {
		results[item.pos] = item.res
		filled++
		if item.res.Failure == score.FailureAborted {
			interrupted = true
		}
		r.record(item.res)
	}
	if err := ctx.Err(); err != nil && (interrupted || filled < len(ordered)) {
		util.Warnf("batch aborted after %d/%d pairs: %v", filled, len(ordered), err)
		for i, p := range ordered {
			results[i] = score.Zero(p, score.FailureAborted, err.Error())
		}
		return results, err
	}
	util.Infof("evaluation finished pairs=%d failures=%d timeouts=%d elapsed=%s",
		len(ordered), r.failures.Load(), r.timeouts.Load(), time.Since(r.started).Round(time.Millisecond))
	return results, nil
}

func (r *Runner) record(res score.Result) {
	done := r.completed.Add(1)
	if res.Failed() {
		r.failures.Add(1)
		if res.Failure == score.FailureTimeout {
			r.timeouts.Add(1)
		}
	}
	r.metrics.PairDone(string(res.Failure))
	if res.Failure == score.FailureNone && res.MatchVerdict != "" {
		r.metrics.ObserveReward(res.Reward)
	}
	if r.progress != nil {
		r.progress(int(done), int(r.total.Load()))
	}
}

// runPair scores one pair in its own goroutine under the per-pair deadline.
// After the deadline the late result is dropped.
func (r *Runner) runPair(ctx context.Context, p bench.QueryPair) score.Result {
	r.metrics.PairStarted()
	defer r.metrics.PairFinished()

	pairCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	done := make(chan score.Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				util.Errorf("pair %s reason=panic: %v sql=%s", p.ID, rec, compactSQL(p.Generated, 0))
				done <- score.Zero(p, score.FailurePanic, fmt.Sprint(rec))
			}
		}()
		done <- r.evaluate(pairCtx, p)
	}()

	select {
	case res := <-done:
		return res
	case <-pairCtx.Done():
		return r.expired(ctx, p, done)
	}
}

// expired settles a pair whose deadline passed. A result that arrived
// together with the deadline still wins.
func (r *Runner) expired(ctx context.Context, p bench.QueryPair, done <-chan score.Result) score.Result {
	select {
	case res := <-done:
		return res
	default:
	}
	if err := ctx.Err(); err != nil {
		return score.Zero(p, score.FailureAborted, err.Error())
	}
	util.Warnf("pair %s reason=timeout after %s sql=%s", p.ID, r.timeout, compactSQL(p.Generated, 0))
	return score.Zero(p, score.FailureTimeout, errors.Wrapf(ErrTimeout, "after %s", r.timeout).Error())
}
