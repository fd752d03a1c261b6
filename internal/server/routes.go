package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	apperr "github.com/itsChris/qrcomposer/internal/errors"
	"github.com/itsChris/qrcomposer/internal/middleware"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Composition.
	s.mux.Handle("POST /api/qr/path", s.limited(s.handleQRPath))
	s.mux.Handle("POST /api/qr/svg", s.limited(s.handleQRSVG))
	s.mux.Handle("GET /api/qr.svg", s.limited(s.handleQRSVGQuery))
	s.mux.HandleFunc("POST /api/contents/encode", s.handleEncodeContents)

	// Presets.
	s.mux.HandleFunc("GET /api/presets", s.handleListPresets)
	s.mux.HandleFunc("GET /api/presets/{name}", s.handleGetPreset)
	s.mux.HandleFunc("PUT /api/presets/{name}", s.handlePutPreset)
	s.mux.HandleFunc("DELETE /api/presets/{name}", s.handleDeletePreset)

	// Diagnostics, dev mode only.
	s.mux.HandleFunc("GET /api/debug/info", s.devOnly(s.handleDebugInfo))
	s.mux.HandleFunc("GET /api/debug/logs", s.devOnly(s.handleDebugLogs))

	s.mux.HandleFunc("/api/", s.handleNotFound)
}

// limited applies the per-client rate limit, if one is configured.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return middleware.RateLimit(s.limiter, s.logger)(h)
}

// devOnly hides h behind a 404 outside dev mode.
func (s *Server) devOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.devMode {
			s.handleNotFound(w, r)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path),
		apperr.ErrNotFound, http.StatusNotFound, s.devMode)
}

// handleHealth reports liveness, database reachability and cache usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.db.Ping(r.Context()); err != nil {
		dbStatus = "error"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  s.version,
		"uptime":   formatDuration(time.Since(s.startTime)),
		"database": dbStatus,
		"cache":    s.composer.Stats(),
	})
}

// handleMetrics returns Prometheus exposition format metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	st := s.composer.Stats()

	var b strings.Builder
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("qrcomposer_cache_hits_total", "counter", "Compositions served from the cache.", st.Hits)
	metric("qrcomposer_cache_misses_total", "counter", "Compositions not found in the cache.", st.Misses)
	metric("qrcomposer_cache_entries", "gauge", "Results currently cached.", st.Entries)
	metric("qrcomposer_cache_capacity", "gauge", "Maximum number of cached results.", st.Capacity)
	metric("qrcomposer_compose_failures_total", "counter", "Compositions that failed.", st.Failures)
	metric("qrcomposer_uptime_seconds", "gauge", "Seconds since the server started.", int64(time.Since(s.startTime).Seconds()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(b.String()))
}

// formatDuration formats a duration as a human-readable string like "14d 3h 22m".
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
