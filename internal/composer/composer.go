// Package composer is the boundary between callers and the QR pipeline. It
// encodes a payload, generates its path, folds every failure into a single
// typed error and memoizes successful results by input value.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
)

// DefaultSize is the output size in pixels when a request leaves it unset.
const DefaultSize = 100

// DefaultCacheSize is the number of results kept by default.
const DefaultCacheSize = 256

// Request is the full input tuple of one composition.
type Request struct {
	Value           string                         `json:"value"`
	Size            float64                        `json:"size,omitempty"`
	Level           matrix.Level                   `json:"error_correction_level,omitempty"`
	DetectionMarker *qrpath.DetectionMarkerOptions `json:"detection_marker_options,omitempty"`
	Pattern         *qrpath.PatternOptions         `json:"pattern_options,omitempty"`
}

func (r Request) withDefaults() Request {
	if r.Size == 0 {
		r.Size = DefaultSize
	}
	if r.Level == "" {
		r.Level = matrix.DefaultLevel
	}
	return r
}

// Kind classifies a Failure.
type Kind int

const (
	// EncodingFailure means the encoder rejected the payload or level.
	EncodingFailure Kind = iota + 1
	// EmptyMatrixFailure means the generator received a matrix with no rows.
	EmptyMatrixFailure
)

func (k Kind) String() string {
	switch k {
	case EncodingFailure:
		return "encoding_failure"
	case EmptyMatrixFailure:
		return "empty_matrix_failure"
	default:
		return "unknown_failure"
	}
}

// Failure is the only error type returned by Compose.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// Stats is a snapshot of cache and failure counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Failures uint64 `json:"failures"`
}

// Config holds the dependencies for a Composer.
type Config struct {
	// CacheSize bounds the memo cache. Zero disables caching.
	CacheSize int
	Logger    *slog.Logger
}

// Composer runs compositions. It is safe for concurrent use.
type Composer struct {
	cache    *lru
	logger   *slog.Logger
	failures atomic.Uint64
}

// New creates a Composer.
func New(cfg Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		cache:  newLRU(cfg.CacheSize),
		logger: logger,
	}
}

// Compose encodes req.Value and generates its path. Identical requests are
// served from the cache; failures are never cached.
func (c *Composer) Compose(ctx context.Context, req Request) (qrpath.Result, error) {
	req = req.withDefaults()
	key := keyOf(req)

	if res, ok := c.cache.get(key); ok {
		return res, nil
	}

	res, err := compose(req)
	if err != nil {
		c.failures.Add(1)
		f, _ := AsFailure(err)
		attrs := append(logging.LogAttrsFromContext(ctx),
			slog.String("kind", f.Kind.String()),
			slog.Any("error", err),
			slog.Int("value_len", len(req.Value)),
			slog.String("level", string(req.Level)),
			slog.String("component", "composer"),
		)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "compose_failed", attrs...)
		return qrpath.Result{}, err
	}

	c.cache.put(key, res)
	c.logger.LogAttrs(ctx, slog.LevelDebug, "compose_done",
		append(logging.LogAttrsFromContext(ctx),
			slog.Float64("cell_size", res.CellSize),
			slog.Int("path_len", len(res.Path)),
			slog.String("component", "composer"),
		)...,
	)
	return res, nil
}

// Stats returns the current counters.
func (c *Composer) Stats() Stats {
	s := c.cache.stats()
	s.Failures = c.failures.Load()
	return s
}

func compose(req Request) (qrpath.Result, error) {
	m, err := guard(EncodingFailure, func() (matrix.Matrix, error) {
		return matrix.Encode(req.Value, req.Level)
	})
	if err != nil {
		return qrpath.Result{}, err
	}
	return Generate(m, req.Size, req.DetectionMarker, req.Pattern)
}

// Generate runs only the path generator over a caller-supplied matrix, with
// the same failure handling as Compose.
func Generate(m matrix.Matrix, size float64, marker *qrpath.DetectionMarkerOptions, pattern *qrpath.PatternOptions) (qrpath.Result, error) {
	return guard(EmptyMatrixFailure, func() (qrpath.Result, error) {
		return qrpath.Generate(m, size, marker, pattern)
	})
}

// guard runs fn and turns a returned error or a panic into a Failure of
// the given kind.
func guard[T any](kind Kind, fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &Failure{Kind: kind, Err: fmt.Errorf("%v", rec)}
		}
	}()
	v, err = fn()
	if err != nil {
		return v, &Failure{Kind: kind, Err: err}
	}
	return v, nil
}
