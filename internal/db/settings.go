package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Setting keys written by the server.
const (
	SettingVersion     = "server_version"
	SettingLastStarted = "last_started_at"
)

// GetSetting retrieves a setting value by key.
// Returns empty string and nil error if the key does not exist.
func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db: get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting key-value pair.
func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d, key, value)
}

func setSetting(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("db: set setting %q: %w", key, err)
	}
	return nil
}

// ListSettings returns all settings as a map.
func (d *DB) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("db: list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("db: scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// MarkStarted records the running server version and start time.
func (d *DB) MarkStarted(ctx context.Context, version string, at time.Time) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setSetting(ctx, tx, SettingVersion, version); err != nil {
		return err
	}
	if err := setSetting(ctx, tx, SettingLastStarted, strconv.FormatInt(at.Unix(), 10)); err != nil {
		return err
	}
	return tx.Commit()
}
