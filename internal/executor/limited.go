package executor

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"vqlbench/internal/table"
)

// Limited throttles calls to the wrapped executor. Time spent waiting for the
// limiter is not included in the reported duration.
type Limited struct {
	next    Executor
	limiter *rate.Limiter
}

// NewLimited wraps next with a token bucket of qps and burst. A non-positive
// qps disables limiting and returns next unchanged.
func NewLimited(next Executor, qps float64, burst int) Executor {
	if qps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Execute waits for a token, then runs the query.
func (l *Limited) Execute(ctx context.Context, query string) (*table.Table, time.Duration, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, 0, Wrap(query, err)
	}
	return l.next.Execute(ctx, query)
}
