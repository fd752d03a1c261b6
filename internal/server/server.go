// Package server is the HTTP API for composing QR code paths and SVG
// documents and for managing style presets.
package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/db"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/middleware"
)

// Defaults are applied to requests that leave the corresponding field out.
type Defaults struct {
	Size            float64      `json:"size"`
	Level           matrix.Level `json:"level"`
	Color           string       `json:"color"`
	BackgroundColor string       `json:"background_color"`
	QuietZone       float64      `json:"quiet_zone"`
}

// Server is the HTTP server that wires together all subsystems.
type Server struct {
	composer  *composer.Composer
	db        *db.DB
	logger    *slog.Logger
	ring      *logging.RingBuffer
	limiter   *middleware.RateLimiter
	defaults  atomic.Pointer[Defaults]
	devMode   bool
	version   string
	startTime time.Time
	mux       *http.ServeMux
	handler   http.Handler
}

// Config holds the dependencies for creating a new Server.
type Config struct {
	Composer *composer.Composer
	DB       *db.DB
	Logger   *slog.Logger
	Ring     *logging.RingBuffer
	Defaults Defaults
	DevMode  bool
	Version  string
	// MaxBodySize bounds request bodies. Zero selects
	// middleware.DefaultMaxBodySize.
	MaxBodySize int64
	// RateLimit bounds composition requests per client per minute. Zero
	// disables limiting.
	RateLimit int
}

// New creates a Server and registers all routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodySize
	}

	s := &Server{
		composer:  cfg.Composer,
		db:        cfg.DB,
		logger:    logger,
		ring:      cfg.Ring,
		devMode:   cfg.DevMode,
		version:   cfg.Version,
		startTime: time.Now(),
		mux:       http.NewServeMux(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	}
	s.SetDefaults(cfg.Defaults)
	s.registerRoutes()

	s.handler = middleware.Chain(s.mux,
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.RequestLogger(logger, cfg.DevMode),
		middleware.MaxBody(maxBody),
		middleware.SecurityHeaders(cfg.DevMode),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// SetDefaults replaces the request defaults. It is safe to call while
// requests are being served.
func (s *Server) SetDefaults(d Defaults) {
	if d.Size == 0 {
		d.Size = composer.DefaultSize
	}
	if d.Level == "" {
		d.Level = matrix.DefaultLevel
	}
	s.defaults.Store(&d)
}

func (s *Server) currentDefaults() Defaults {
	return *s.defaults.Load()
}
