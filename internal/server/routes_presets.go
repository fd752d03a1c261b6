package server

import (
	"fmt"
	"net/http"

	"github.com/itsChris/qrcomposer/internal/db"
	apperr "github.com/itsChris/qrcomposer/internal/errors"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/style"
)

// presetRequest is the body of PUT /api/presets/{name}.
type presetRequest struct {
	Description string      `json:"description,omitempty"`
	Style       style.Style `json:"style"`
}

// storeError maps a database failure onto an API error. A damaged store is
// reported as unavailable rather than as an internal error.
func storeError(err error) *apiError {
	if db.IsCorrupted(err) {
		return &apiError{err: err, code: apperr.ErrDatabaseCorrupted, status: http.StatusServiceUnavailable}
	}
	return &apiError{err: err, code: apperr.ErrInternal, status: http.StatusInternalServerError}
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.db.ListPresets(r.Context())
	if err != nil {
		s.writeAPIError(w, r, storeError(err))
		return
	}
	if presets == nil {
		presets = []db.Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"count":   len(presets),
	})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, err := s.db.GetPreset(r.Context(), name)
	if err != nil {
		s.writeAPIError(w, r, storeError(err))
		return
	}
	if p == nil {
		writeError(w, r, fmt.Errorf("preset %q not found", name), apperr.ErrPresetNotFound, http.StatusNotFound, s.devMode)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var in presetRequest
	if code, status, err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, code, status, s.devMode)
		return
	}
	if err := in.Style.Validate(); err != nil {
		writeValidationError(w, r, []fieldError{{Field: "style", Message: err.Error()}})
		return
	}

	p := &db.Preset{Name: name, Description: in.Description, Style: in.Style}
	if err := s.db.UpsertPreset(r.Context(), p); err != nil {
		s.writeAPIError(w, r, storeError(err))
		return
	}

	stored, err := s.db.GetPreset(r.Context(), name)
	if err != nil || stored == nil {
		s.writeAPIError(w, r, storeError(fmt.Errorf("reload preset %q: %w", name, err)))
		return
	}

	s.logger.Info("preset_saved",
		"request_id", logging.RequestID(r.Context()),
		"name", name,
		"component", "http",
	)
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removed, err := s.db.DeletePreset(r.Context(), name)
	if err != nil {
		s.writeAPIError(w, r, storeError(err))
		return
	}
	if !removed {
		writeError(w, r, fmt.Errorf("preset %q not found", name), apperr.ErrPresetNotFound, http.StatusNotFound, s.devMode)
		return
	}

	s.logger.Info("preset_deleted",
		"request_id", logging.RequestID(r.Context()),
		"name", name,
		"component", "http",
	)
	w.WriteHeader(http.StatusNoContent)
}
