// Package engine opens the configured query engine adapter.
package engine

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"vqlbench/internal/catalog"
	"vqlbench/internal/config"
	"vqlbench/internal/db"
	"vqlbench/internal/executor"
	"vqlbench/internal/metrics"
	"vqlbench/internal/util"
)

// Open builds the adapter selected by executor.driver and layers rate
// limiting and metrics on top. The returned closer may be nil.
func Open(ctx context.Context, cfg config.Config, m *metrics.Metrics) (executor.Executor, io.Closer, error) {
	var (
		base   executor.Executor
		closer io.Closer
	)
	timeout := time.Duration(cfg.Executor.StatementTimeoutMs) * time.Millisecond
	switch cfg.Executor.Driver {
	case config.DriverCatalog:
		client, err := catalog.New(catalog.Options{
			URL:       cfg.Executor.Catalog.URL,
			ServerID:  cfg.Executor.Catalog.ServerID,
			User:      cfg.Executor.Catalog.User,
			Password:  cfg.Executor.Catalog.Password,
			VerifySSL: cfg.Executor.Catalog.VerifySSL,
			Limit:     cfg.Executor.RowLimit,
			Timeout:   timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		base = client
	default:
		conn, err := db.Open(cfg.Executor.Driver, cfg.Executor.DSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to db")
		}
		conn.RowLimit = cfg.Executor.RowLimit
		conn.StatementTimeout = timeout
		conn.SetMaxOpenConns(cfg.Evaluation.Workers * 2)
		conn.Observe = func(sql string, err error) {
			if err != nil {
				util.Detailf("statement failed reason=%s sql=%s err=%v", executor.Reason(err), sql, err)
			}
		}
		if cfg.Executor.CheckConnection {
			if err := conn.CheckConnection(ctx); err != nil {
				util.CloseWithErr(conn, "db")
				return nil, nil, err
			}
		}
		base = conn
		closer = conn
	}
	limited := executor.NewLimited(base, cfg.Executor.RateLimit.QPS, cfg.Executor.RateLimit.Burst)
	return executor.NewObserved(limited, m), closer, nil
}
