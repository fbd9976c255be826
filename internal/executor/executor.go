// Package executor defines the query execution contract used by the scorers
// and the wrappers shared by every adapter.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"vqlbench/internal/table"
	"vqlbench/internal/util"
)

// ErrAdapter marks a failed query execution.
var ErrAdapter = errors.New("adapter error")

// Executor runs one query and returns its table and wall-clock duration.
// Implementations must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, query string) (*table.Table, time.Duration, error)
}

// Func adapts a function to Executor.
type Func func(ctx context.Context, query string) (*table.Table, time.Duration, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, query string) (*table.Table, time.Duration, error) {
	return f(ctx, query)
}

// AdapterError wraps an execution failure with the offending query.
type AdapterError struct {
	Query string
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("execute %q: %v", util.Truncate(e.Query, 200), e.Err)
}

// Unwrap returns the underlying error.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is matches ErrAdapter.
func (e *AdapterError) Is(target error) bool {
	return target == ErrAdapter
}

// Wrap returns err as an AdapterError, or nil.
func Wrap(query string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	return &AdapterError{Query: query, Err: err}
}

// Run executes a query and folds the result into an Outcome.
func Run(ctx context.Context, exec Executor, query string) table.Outcome {
	tbl, elapsed, err := exec.Execute(ctx, query)
	return table.Outcome{Table: tbl, Elapsed: elapsed, Err: Wrap(query, err)}
}
