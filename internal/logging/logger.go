package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls logger behavior.
type Config struct {
	Level slog.Level
	// Format is "json" or "text". DevMode forces text.
	Format    string
	DevMode   bool
	AddSource bool
	// Output defaults to os.Stderr so that commands printing results on
	// stdout stay pipeable.
	Output io.Writer
}

// ParseLevel maps a level name onto a slog.Level. Unknown names are an
// error rather than a silent fallback.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

func (cfg Config) handler() slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource || cfg.DevMode,
	}
	if cfg.DevMode || cfg.Format == "text" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// New creates a configured slog.Logger.
func New(cfg Config) *slog.Logger {
	return slog.New(cfg.handler())
}

// NewWithRing creates a logger that also keeps recent WARN+ records in
// ring for the debug API.
func NewWithRing(cfg Config, ring *RingBuffer) *slog.Logger {
	return slog.New(&ringHandler{
		primary: cfg.handler(),
		ring:    ring,
	})
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
