package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itsChris/qrcomposer/internal/style"
)

// Preset is a named, stored style.
type Preset struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Style       style.Style `json:"style" yaml:"style"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

const presetColumns = "name, description, style, created_at, updated_at"

// UpsertPreset inserts p or replaces the stored preset with the same name.
// The creation time of an existing preset is kept.
func (d *DB) UpsertPreset(ctx context.Context, p *Preset) error {
	return upsertPreset(ctx, d, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPreset(ctx context.Context, ex execer, p *Preset) error {
	if p.Name == "" {
		return errors.New("db: preset name is required")
	}
	encoded, err := json.Marshal(p.Style)
	if err != nil {
		return fmt.Errorf("db: encode preset %q: %w", p.Name, err)
	}

	now := time.Now().Unix()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO presets (name, description, style, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   description = excluded.description,
		   style = excluded.style,
		   updated_at = excluded.updated_at`,
		p.Name, p.Description, string(encoded), now, now,
	)
	if err != nil {
		return fmt.Errorf("db: upsert preset %q: %w", p.Name, err)
	}
	return nil
}

// ImportPresets upserts all presets in one transaction. Either every
// preset is stored or none is.
func (d *DB) ImportPresets(ctx context.Context, presets []Preset) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range presets {
		if err := upsertPreset(ctx, tx, &presets[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit preset import: %w", err)
	}
	return nil
}

// GetPreset returns the preset called name.
// Returns nil, nil if no such preset exists.
func (d *DB) GetPreset(ctx context.Context, name string) (*Preset, error) {
	p, err := scanPreset(d.QueryRowContext(ctx,
		"SELECT "+presetColumns+" FROM presets WHERE name = ?", name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db: get preset %q: %w", name, err)
	}
	return p, nil
}

// ListPresets returns all presets ordered by name.
func (d *DB) ListPresets(ctx context.Context) ([]Preset, error) {
	rows, err := d.QueryContext(ctx, "SELECT "+presetColumns+" FROM presets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("db: list presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("db: scan preset: %w", err)
		}
		presets = append(presets, *p)
	}
	return presets, rows.Err()
}

// DeletePreset removes the preset called name. It reports whether a preset
// was removed.
func (d *DB) DeletePreset(ctx context.Context, name string) (bool, error) {
	result, err := d.ExecContext(ctx, "DELETE FROM presets WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("db: delete preset %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db: delete preset %q: %w", name, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(s scanner) (*Preset, error) {
	var (
		p                Preset
		encoded          string
		created, updated int64
	)
	if err := s.Scan(&p.Name, &p.Description, &encoded, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &p.Style); err != nil {
		return nil, fmt.Errorf("decode style of %q: %w", p.Name, err)
	}
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}
