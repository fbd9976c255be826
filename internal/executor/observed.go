package executor

import (
	"context"
	"time"

	"vqlbench/internal/metrics"
	"vqlbench/internal/table"
	"vqlbench/internal/util"
)

// Observed records durations and failures of the wrapped executor.
type Observed struct {
	next    Executor
	metrics *metrics.Metrics
}

// NewObserved wraps next. A nil metrics instance still logs failures.
func NewObserved(next Executor, m *metrics.Metrics) *Observed {
	return &Observed{next: next, metrics: m}
}

// Execute runs the query and records the outcome.
func (o *Observed) Execute(ctx context.Context, query string) (*table.Table, time.Duration, error) {
	tbl, elapsed, err := o.next.Execute(ctx, query)
	if err != nil {
		reason := Reason(err)
		o.metrics.AdapterError(reason)
		util.Detailf("query failed reason=%s sql=%s err=%v", reason, query, err)
		return tbl, elapsed, err
	}
	o.metrics.ObserveQuery(sideFromContext(ctx), elapsed)
	return tbl, elapsed, nil
}

type sideKey struct{}

// WithSide tags ctx with the query side ("predicted" or "truth") for metrics.
func WithSide(ctx context.Context, side string) context.Context {
	return context.WithValue(ctx, sideKey{}, side)
}

func sideFromContext(ctx context.Context) string {
	if side, ok := ctx.Value(sideKey{}).(string); ok && side != "" {
		return side
	}
	return "unknown"
}
