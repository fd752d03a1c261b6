package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/contents"
	apperr "github.com/itsChris/qrcomposer/internal/errors"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/qrpath"
	"github.com/itsChris/qrcomposer/internal/render"
	"github.com/itsChris/qrcomposer/internal/style"
)

// qrRequest is the body of POST /api/qr/path and POST /api/qr/svg. Style
// fields given inline override those of the named preset.
type qrRequest struct {
	Value    string          `json:"value"`
	Contents json.RawMessage `json:"contents,omitempty"`
	Size     float64         `json:"size,omitempty"`
	Preset   string          `json:"preset,omitempty"`
	Logo     *logoInput      `json:"logo,omitempty"`
	style.Style
}

// logoInput carries the logo image as base64 in JSON.
type logoInput struct {
	Data      []byte `json:"data"`
	MediaType string `json:"media_type,omitempty"`
}

// apiError is a failed step of request handling together with its HTTP
// mapping.
type apiError struct {
	err    error
	code   string
	status int
}

func (e *apiError) Error() string { return e.err.Error() }

func (e *apiError) Unwrap() error { return e.err }

func badRequest(code string, err error) *apiError {
	return &apiError{err: err, code: code, status: http.StatusBadRequest}
}

// composition is a resolved request ready to be composed and rendered.
type composition struct {
	req  composer.Request
	st   style.Style
	logo *logoInput
}

// resolve turns a request into a composition: the payload is taken from
// structured contents when given, the preset is merged under the inline
// style, and server defaults fill what is still unset.
func (s *Server) resolve(r *http.Request, in qrRequest) (*composition, *apiError) {
	value := in.Value
	if len(in.Contents) > 0 {
		c, err := contents.FromJSON(in.Contents)
		if err != nil {
			return nil, badRequest(apperr.ErrInvalidContents, err)
		}
		value = c.Encode()
	}

	if in.Size < 0 || math.IsNaN(in.Size) || math.IsInf(in.Size, 0) {
		return nil, badRequest(apperr.ErrValidation, fmt.Errorf("size must be a positive number, got %v", in.Size))
	}

	st := in.Style
	if in.Preset != "" {
		p, err := s.db.GetPreset(r.Context(), in.Preset)
		if err != nil {
			return nil, storeError(err)
		}
		if p == nil {
			return nil, &apiError{
				err:    fmt.Errorf("preset %q not found", in.Preset),
				code:   apperr.ErrPresetNotFound,
				status: http.StatusNotFound,
			}
		}
		st = style.Merge(p.Style, st)
	}
	if err := st.Validate(); err != nil {
		return nil, badRequest(apperr.ErrValidation, err)
	}

	d := s.currentDefaults()
	if st.Level == "" {
		st.Level = d.Level
	}
	if st.Color == "" {
		st.Color = d.Color
	}
	if st.BackgroundColor == "" {
		st.BackgroundColor = d.BackgroundColor
	}
	if st.QuietZone == nil {
		qz := d.QuietZone
		st.QuietZone = &qz
	}
	size := in.Size
	if size == 0 {
		size = d.Size
	}

	if in.Logo != nil {
		if len(in.Logo.Data) == 0 {
			return nil, badRequest(apperr.ErrValidation, errors.New("logo data must not be empty"))
		}
		if in.Logo.MediaType == "" {
			in.Logo.MediaType = "image/png"
		}
		if !strings.HasPrefix(in.Logo.MediaType, "image/") {
			return nil, badRequest(apperr.ErrValidation, fmt.Errorf("logo media type must be an image type, got %q", in.Logo.MediaType))
		}
	}

	return &composition{req: st.Request(value, size), st: st, logo: in.Logo}, nil
}

// compose runs c through the composer and writes an error response on
// failure.
func (s *Server) compose(w http.ResponseWriter, r *http.Request, c *composition) (qrpath.Result, bool) {
	res, err := s.composer.Compose(r.Context(), c.req)
	if err == nil {
		return res, true
	}

	code, status := apperr.ErrInternal, http.StatusInternalServerError
	if f, ok := composer.AsFailure(err); ok {
		status = http.StatusUnprocessableEntity
		switch f.Kind {
		case composer.EncodingFailure:
			code = apperr.ErrEncodingFailed
		case composer.EmptyMatrixFailure:
			code = apperr.ErrEmptyMatrix
		}
	}
	writeError(w, r, err, code, status, s.devMode)
	return qrpath.Result{}, false
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, e *apiError) {
	if e.status >= http.StatusInternalServerError {
		s.logger.Error("request_failed",
			"request_id", logging.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", e.err,
			"component", "http",
		)
	}
	writeError(w, r, e.err, e.code, e.status, s.devMode)
}

func (s *Server) decodeComposition(w http.ResponseWriter, r *http.Request) (*composition, bool) {
	var in qrRequest
	if code, status, err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err, code, status, s.devMode)
		return nil, false
	}
	c, apiErr := s.resolve(r, in)
	if apiErr != nil {
		s.writeAPIError(w, r, apiErr)
		return nil, false
	}
	return c, true
}

// handleQRPath returns the generated path and module size as JSON.
func (s *Server) handleQRPath(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeComposition(w, r)
	if !ok {
		return
	}
	res, ok := s.compose(w, r, c)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleQRSVG returns a complete SVG document.
func (s *Server) handleQRSVG(w http.ResponseWriter, r *http.Request) {
	c, ok := s.decodeComposition(w, r)
	if !ok {
		return
	}
	s.writeSVG(w, r, c)
}

// handleQRSVGQuery is the GET form of handleQRSVG, suitable for <img src>.
func (s *Server) handleQRSVGQuery(w http.ResponseWriter, r *http.Request) {
	in, fields := parseQuery(r.URL.Query())
	if len(fields) > 0 {
		writeValidationError(w, r, fields)
		return
	}
	c, apiErr := s.resolve(r, in)
	if apiErr != nil {
		s.writeAPIError(w, r, apiErr)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	s.writeSVG(w, r, c)
}

func (s *Server) writeSVG(w http.ResponseWriter, r *http.Request, c *composition) {
	res, ok := s.compose(w, r, c)
	if !ok {
		return
	}

	var logoData []byte
	var logoType string
	if c.logo != nil {
		logoData, logoType = c.logo.Data, c.logo.MediaType
	}
	doc := c.st.Document(logoData, logoType)

	var buf bytes.Buffer
	if err := render.SVG(&buf, res, c.req.Size, doc); err != nil {
		s.writeAPIError(w, r, &apiError{err: fmt.Errorf("render svg: %w", err), code: apperr.ErrInternal, status: http.StatusInternalServerError})
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// parseQuery reads a qrRequest from URL query parameters. Only the flat
// style options are available this way.
func parseQuery(q url.Values) (qrRequest, []fieldError) {
	var (
		in     qrRequest
		fields []fieldError
	)
	fail := func(field string, err error) {
		fields = append(fields, fieldError{Field: field, Message: err.Error()})
	}
	float := func(field string) *float64 {
		raw := q.Get(field)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			fail(field, fmt.Errorf("not a number: %q", raw))
			return nil
		}
		return &v
	}
	boolean := func(field string) *bool {
		raw := q.Get(field)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(field, fmt.Errorf("not a boolean: %q", raw))
			return nil
		}
		return &v
	}

	in.Value = q.Get("value")
	in.Preset = q.Get("preset")
	if size := float("size"); size != nil {
		in.Size = *size
	}
	if raw := q.Get("level"); raw != "" {
		level, err := matrix.ParseLevel(raw)
		if err != nil {
			fail("level", err)
		}
		in.Level = level
	}
	in.Color = q.Get("color")
	in.BackgroundColor = q.Get("background_color")
	in.QuietZone = float("quiet_zone")

	marker := qrpath.DetectionMarkerOptions{
		Connected:         boolean("marker_connected"),
		CornerRadius:      float("marker_radius"),
		OuterCornerRadius: float("marker_outer_radius"),
		InnerCornerRadius: float("marker_inner_radius"),
	}
	if marker != (qrpath.DetectionMarkerOptions{}) {
		in.DetectionMarker = &marker
	}
	pattern := qrpath.PatternOptions{
		Connected:    boolean("pattern_connected"),
		CornerRadius: float("pattern_radius"),
	}
	if pattern != (qrpath.PatternOptions{}) {
		in.Pattern = &pattern
	}

	if !q.Has("value") {
		fail("value", errors.New("required"))
	}
	return in, fields
}

// handleEncodeContents turns structured contents into the payload string.
func (s *Server) handleEncodeContents(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if code, status, err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, err, code, status, s.devMode)
		return
	}
	c, err := contents.FromJSON(raw)
	if err != nil {
		writeError(w, r, err, apperr.ErrInvalidContents, http.StatusBadRequest, s.devMode)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": c.Encode()})
}
