package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded SQL migrations that are not yet recorded in
// the _migrations table. Each file runs in its own transaction together
// with its bookkeeping row.
func Migrate(ctx context.Context, d *DB, logger *slog.Logger) error {
	if _, err := d.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			filename TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL DEFAULT (unixepoch())
		)
	`); err != nil {
		return fmt.Errorf("db: create migrations table: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("db: list migrations: %w", err)
	}
	sort.Strings(names)

	applied := 0
	for _, path := range names {
		name := strings.TrimPrefix(path, "migrations/")

		var count int
		if err := d.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM _migrations WHERE filename = ?", name,
		).Scan(&count); err != nil {
			return fmt.Errorf("db: check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("db: read migration %s: %w", name, err)
		}
		if err := applyMigration(ctx, d, name, extractUpSection(string(content))); err != nil {
			return err
		}
		applied++

		logger.Info("migration_applied",
			"filename", name,
			"component", "db",
		)
	}

	logger.Debug("migrations_done",
		"available", len(names),
		"applied", applied,
		"component", "db",
	)
	return nil
}

func applyMigration(ctx context.Context, d *DB, name, stmt string) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("db: apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _migrations (filename) VALUES (?)", name,
	); err != nil {
		return fmt.Errorf("db: record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit migration %s: %w", name, err)
	}
	return nil
}

// extractUpSection returns only the SQL between "-- +goose Up" and
// "-- +goose Down". Files without goose directives are returned whole.
func extractUpSection(sql string) string {
	_, up, found := strings.Cut(sql, "-- +goose Up")
	if !found {
		return sql
	}
	up, _, _ = strings.Cut(up, "-- +goose Down")
	return strings.TrimSpace(up)
}
