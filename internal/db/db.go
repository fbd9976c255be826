// Package db executes queries over database/sql against the MySQL or
// PostgreSQL wire endpoint of the query engine.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"vqlbench/internal/table"
)

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

// DB wraps a connection pool with execution hooks.
type DB struct {
	*sql.DB
	// Observe is called after every executed statement.
	Observe func(sql string, err error)
	// RowLimit caps the rows read per query; 0 reads everything.
	RowLimit int
	// StatementTimeout bounds each statement; 0 disables it.
	StatementTimeout time.Duration
}

// Open connects with the named driver. The pool is verified lazily.
func Open(driver, dsn string) (*DB, error) {
	var conn *sql.DB
	switch driver {
	case DriverMySQL, "":
		cfg, perr := mysql.ParseDSN(dsn)
		if perr != nil {
			return nil, errors.Wrap(perr, "parse mysql dsn")
		}
		connector, cerr := mysql.NewConnector(cfg)
		if cerr != nil {
			return nil, errors.Wrap(cerr, "mysql connector")
		}
		conn = sql.OpenDB(connector)
	case DriverPostgres:
		cfg, perr := pgx.ParseConfig(dsn)
		if perr != nil {
			return nil, errors.Wrap(perr, "parse postgres dsn")
		}
		conn = stdlib.OpenDB(*cfg)
	default:
		return nil, errors.Errorf("unsupported driver %q", driver)
	}
	return &DB{DB: conn}, nil
}

// Execute runs query and reads every row into a table.
func (d *DB) Execute(ctx context.Context, query string) (*table.Table, time.Duration, error) {
	if d.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.StatementTimeout)
		defer cancel()
	}
	start := time.Now()
	tbl, err := d.query(ctx, query)
	elapsed := time.Since(start)
	if d.Observe != nil {
		d.Observe(query, err)
	}
	if err != nil {
		return nil, elapsed, err
	}
	return tbl, elapsed, nil
}

func (d *DB) query(ctx context.Context, query string) (*table.Table, error) {
	rows, err := d.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	tbl := &table.Table{Columns: cols}
	for rows.Next() {
		if d.RowLimit > 0 && len(tbl.Rows) >= d.RowLimit {
			break
		}
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tbl, nil
}

// CheckConnection runs a trivial query so that bad credentials fail before
// the batch starts.
func (d *DB) CheckConnection(ctx context.Context) error {
	var marker int
	if err := d.QueryRowContext(ctx, "SELECT 1").Scan(&marker); err != nil {
		return errors.Wrap(err, "connection check")
	}
	return nil
}
