package server

import (
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// handleDebugInfo returns a diagnostic JSON snapshot.
func (s *Server) handleDebugInfo(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := map[string]any{
		"version":        s.version,
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"defaults":       s.currentDefaults(),
		"cache":          s.composer.Stats(),
		"system": map[string]any{
			"memory_mb":  mem.Alloc / 1024 / 1024,
			"goroutines": runtime.NumGoroutine(),
			"cpu_count":  runtime.NumCPU(),
		},
	}

	ctx := r.Context()
	dbInfo := map[string]any{}
	if settings, err := s.db.ListSettings(ctx); err == nil {
		dbInfo["settings"] = settings
	}
	if presets, err := s.db.ListPresets(ctx); err == nil {
		dbInfo["presets"] = len(presets)
	}
	info["database"] = dbInfo

	writeJSON(w, http.StatusOK, info)
}

// handleDebugLogs returns recent error/warning entries from the ring buffer.
func (s *Server) handleDebugLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	minLevel := slog.LevelWarn
	if r.URL.Query().Get("level") == "error" {
		minLevel = slog.LevelError
	}

	entries := []map[string]any{}
	if s.ring != nil {
		for _, e := range s.ring.Recent(limit) {
			if e.Level < minLevel {
				continue
			}
			entry := map[string]any{
				"timestamp": e.Timestamp.Unix(),
				"level":     e.Level.String(),
				"message":   e.Message,
			}
			for k, v := range e.Attrs {
				entry[k] = v
			}
			entries = append(entries, entry)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
