// Package db is the SQLite store for style presets and server settings.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itsChris/qrcomposer/internal/logging"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const slowQueryThreshold = 100 * time.Millisecond

// ErrCorrupted is returned by Verify when the integrity check fails.
var ErrCorrupted = errors.New("db: database is corrupted")

// IsCorrupted reports whether err stems from a damaged database file or a
// file that is not a SQLite database at all.
func IsCorrupted(err error) bool {
	if errors.Is(err, ErrCorrupted) {
		return true
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

// DB wraps a sql.DB with query logging.
type DB struct {
	conn    *sql.DB
	logger  *slog.Logger
	devMode bool
}

// New opens a SQLite database and configures WAL mode, foreign keys,
// and busy timeout.
func New(ctx context.Context, dsn string, logger *slog.Logger, devMode bool) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dsn, err)
	}

	// Single writer connection for SQLite. This also keeps a ":memory:"
	// database alive for the lifetime of the DB.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db: exec %q: %w", p, err)
		}
	}

	logger.Info("database_opened",
		"dsn", dsn,
		"component", "db",
	)

	return &DB{conn: conn, logger: logger, devMode: devMode}, nil
}

// Open opens the database at dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, logger *slog.Logger, devMode bool) (*DB, error) {
	d, err := New(ctx, dsn, logger, devMode)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, d, logger); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// ExecContext executes a query that doesn't return rows.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := d.conn.ExecContext(ctx, query, args...)
	d.logQuery(ctx, "exec", query, args, time.Since(start), err)
	return result, err
}

// QueryContext executes a query that returns rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := d.conn.QueryContext(ctx, query, args...)
	d.logQuery(ctx, "query", query, args, time.Since(start), err)
	return rows, err
}

// QueryRowContext executes a query that returns at most one row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *timedRow {
	return &timedRow{
		row:   d.conn.QueryRowContext(ctx, query, args...),
		db:    d,
		ctx:   ctx,
		op:    "query_row",
		query: query,
		args:  args,
		start: time.Now(),
	}
}

// BeginTx starts a transaction with logging.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.conn.BeginTx(ctx, opts)
	if err != nil {
		d.logger.Error("sql_begin_failed",
			"error", err,
			"component", "db",
		)
		return nil, fmt.Errorf("db: begin tx: %w", err)
	}
	return &Tx{tx: tx, db: d, start: time.Now()}, nil
}

func (d *DB) logQuery(ctx context.Context, op, query string, args []any, duration time.Duration, err error) {
	requestID := logging.RequestID(ctx)

	if d.devMode {
		d.logger.Debug("sql_"+op,
			"request_id", requestID,
			"query", query,
			"args", fmt.Sprintf("%v", args),
			"duration_ms", duration.Milliseconds(),
			"error", err,
			"component", "db",
		)
	}

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.logger.Error("sql_"+op+"_failed",
			"request_id", requestID,
			"query", query,
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
			"duration_ms", duration.Milliseconds(),
			"component", "db",
		)
	}

	if duration > slowQueryThreshold {
		d.logger.Warn("slow_query",
			"request_id", requestID,
			"query", query,
			"duration_ms", duration.Milliseconds(),
			"component", "db",
		)
	}
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("db: ping: %w", err)
	}
	return nil
}

// IntegrityCheck runs PRAGMA integrity_check and returns the result.
// A healthy database returns "ok".
func (d *DB) IntegrityCheck(ctx context.Context) (string, error) {
	var result string
	if err := d.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return "", fmt.Errorf("db: integrity check: %w", err)
	}
	return result, nil
}

// Verify runs the integrity check and wraps ErrCorrupted around any
// result other than "ok".
func (d *DB) Verify(ctx context.Context) error {
	result, err := d.IntegrityCheck(ctx)
	if err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupted, result)
	}
	return nil
}

// Stats summarises the schema and table sizes.
type Stats struct {
	SchemaVersion int            `json:"schema_version"`
	Tables        map[string]int `json:"tables"`
}

// statTables are the tables Stats counts.
var statTables = []string{"presets", "settings"}

// Stats reports the number of applied migrations and rows per table.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Tables: make(map[string]int, len(statTables))}
	if err := d.QueryRowContext(ctx, "SELECT COUNT(*) FROM _migrations").Scan(&st.SchemaVersion); err != nil {
		return st, fmt.Errorf("db: count migrations: %w", err)
	}
	for _, table := range statTables {
		var n int
		if err := d.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return st, fmt.Errorf("db: count %s: %w", table, err)
		}
		st.Tables[table] = n
	}
	return st, nil
}

// timedRow wraps sql.Row to log after Scan completes.
type timedRow struct {
	row   *sql.Row
	db    *DB
	ctx   context.Context
	op    string
	query string
	args  []any
	start time.Time
}

// Scan reads the row and logs the query timing.
func (r *timedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.db.logQuery(r.ctx, r.op, r.query, r.args, time.Since(r.start), err)
	return err
}

// Tx wraps sql.Tx with logging.
type Tx struct {
	tx    *sql.Tx
	db    *DB
	start time.Time
}

// ExecContext executes a query within the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query, args...)
	t.db.logQuery(ctx, "tx_exec", query, args, time.Since(start), err)
	return result, err
}

// Commit commits the transaction with logging.
func (t *Tx) Commit() error {
	err := t.tx.Commit()
	if err != nil {
		t.db.logger.Error("sql_commit_failed",
			"error", err,
			"duration_ms", time.Since(t.start).Milliseconds(),
			"component", "db",
		)
	} else if t.db.devMode {
		t.db.logger.Debug("sql_commit",
			"duration_ms", time.Since(t.start).Milliseconds(),
			"component", "db",
		)
	}
	return err
}

// Rollback rolls back the transaction. Rolling back a committed
// transaction is a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
