package runner

import (
	"github.com/pkg/errors"
)

var (
	// ErrTimeout marks a pair abandoned at its deadline.
	ErrTimeout = errors.New("pair timeout exceeded")
	// ErrBatchAbort marks a batch that could not be started.
	ErrBatchAbort = errors.New("batch aborted")
)

type abortError struct {
	cause error
}

func abort(cause error) error {
	return &abortError{cause: cause}
}

func (e *abortError) Error() string {
	return ErrBatchAbort.Error() + ": " + e.cause.Error()
}

func (e *abortError) Unwrap() error {
	return e.cause
}

func (e *abortError) Is(target error) bool {
	return target == ErrBatchAbort
}
