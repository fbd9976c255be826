package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"vqlbench/internal/metrics"
	"vqlbench/internal/table"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestWrap(t *testing.T) {
	if Wrap("q", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
	err := Wrap("SELECT 1", errors.New("boom"))
	if !errors.Is(err, ErrAdapter) {
		t.Fatalf("expected ErrAdapter, got %v", err)
	}
	var ae *AdapterError
	if !errors.As(err, &ae) || ae.Query != "SELECT 1" {
		t.Fatalf("expected AdapterError with query, got %#v", err)
	}
	if again := Wrap("other", err); again != err {
		t.Fatalf("wrapping twice should keep the original")
	}
}

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{errors.Wrap(context.Canceled, "run"), "canceled"},
		{&mysql.MySQLError{Number: 1064, Message: "syntax"}, "sql_error_1064"},
		{Wrap("q", &mysql.MySQLError{Number: 1146}), "sql_error_1146"},
		{&pgconn.PgError{Code: "42P01"}, "pg_error_42p01"},
		{Wrap("q", statusErr(502)), "http_502"},
		{errors.New("dial tcp: connection refused"), "connection"},
		{errors.New("i/o timeout"), "timeout"},
		{errors.New("something else"), "adapter_error"},
	}
	for _, c := range cases {
		if got := Reason(c.err); got != c.want {
			t.Fatalf("Reason(%v)=%q, want %q", c.err, got, c.want)
		}
	}
}

func TestIsSyntaxError(t *testing.T) {
	if !IsSyntaxError(&mysql.MySQLError{Number: 1064}) {
		t.Fatalf("1064 should be a syntax error")
	}
	if !IsSyntaxError(Wrap("q", &pgconn.PgError{Code: "42601"})) {
		t.Fatalf("42601 should be a syntax error")
	}
	if IsSyntaxError(errors.New("x")) {
		t.Fatalf("plain error is not a syntax error")
	}
}

func fixed(tbl *table.Table, elapsed time.Duration, err error) Func {
	return func(context.Context, string) (*table.Table, time.Duration, error) {
		return tbl, elapsed, err
	}
}

func TestRun(t *testing.T) {
	tbl := table.New([]string{"a"}, []any{1})
	out := Run(context.Background(), fixed(tbl, time.Second, nil), "SELECT 1")
	if !out.OK() || out.Table != tbl || out.Elapsed != time.Second {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	out = Run(context.Background(), fixed(nil, 0, errors.New("down")), "SELECT 1")
	if out.OK() || !errors.Is(out.Err, ErrAdapter) {
		t.Fatalf("expected adapter error, got %+v", out)
	}
}

func TestNewLimited(t *testing.T) {
	base := fixed(nil, 0, nil)
	if _, ok := NewLimited(base, 0, 1).(Func); !ok {
		t.Fatalf("qps<=0 should return the executor unchanged")
	}
	limited := NewLimited(base, 1, 1)
	if _, _, err := limited.Execute(context.Background(), "q"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := limited.Execute(ctx, "q")
	if !errors.Is(err, ErrAdapter) {
		t.Fatalf("expected adapter error on canceled wait, got %v", err)
	}
}

func TestObserved(t *testing.T) {
	m := metrics.New()
	obs := NewObserved(fixed(table.New(nil), 10*time.Millisecond, nil), m)
	if _, elapsed, err := obs.Execute(WithSide(context.Background(), "truth"), "q"); err != nil || elapsed != 10*time.Millisecond {
		t.Fatalf("unexpected result: %v %v", elapsed, err)
	}
	failing := NewObserved(fixed(nil, 0, &mysql.MySQLError{Number: 1054}), m)
	if _, _, err := failing.Execute(context.Background(), "q"); err == nil {
		t.Fatalf("expected error to pass through")
	}
	if sideFromContext(context.Background()) != "unknown" {
		t.Fatalf("missing side should be unknown")
	}
}
