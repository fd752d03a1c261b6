package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	apperr "github.com/itsChris/qrcomposer/internal/errors"
	"github.com/itsChris/qrcomposer/internal/logging"
)

// errorResponse is the JSON shape returned for all API errors.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	RequestID string       `json:"request_id,omitempty"`
	Fields    []fieldError `json:"fields,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	Stack     string       `json:"stack,omitempty"`
}

// fieldError describes a single field-level validation error.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured JSON error response. In dev mode the full
// error chain and an abbreviated stack trace are included.
func writeError(w http.ResponseWriter, r *http.Request, err error, code string, status int, devMode bool) {
	body := errorBody{
		Code:      code,
		Message:   publicMessage(err, status),
		RequestID: logging.RequestID(r.Context()),
	}

	if devMode && err != nil {
		body.Detail = err.Error()
		body.Stack = captureStack(3)
	}

	writeJSON(w, status, errorResponse{Error: body})
}

// writeValidationError writes a 400 response listing every invalid field.
func writeValidationError(w http.ResponseWriter, r *http.Request, fields []fieldError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
		Code:      apperr.ErrValidation,
		Message:   "validation failed",
		RequestID: logging.RequestID(r.Context()),
		Fields:    fields,
	}})
}

// publicMessage hides internal error chains behind a generic message for
// server-side failures.
func publicMessage(err error, status int) string {
	if err == nil {
		return "unknown error"
	}
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// decodeJSON reads and decodes a JSON request body into v. Unknown fields
// are rejected. An exceeded body limit maps to 413, anything else to 400.
func decodeJSON(r *http.Request, v any) (code string, status int, err error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperr.ErrBodyTooLarge, http.StatusRequestEntityTooLarge,
				fmt.Errorf("request body too large (limit %d bytes)", maxBytesErr.Limit)
		}
		return apperr.ErrInvalidJSON, http.StatusBadRequest,
			fmt.Errorf("invalid request body: %w", err)
	}
	return "", 0, nil
}

// captureStack returns an abbreviated stack trace starting skip frames up.
func captureStack(skip int) string {
	pcs := make([]uintptr, 5)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var parts []string
	for {
		frame, more := frames.Next()
		parts = append(parts, fmt.Sprintf("%s:%d", frame.File, frame.Line))
		if !more {
			break
		}
	}
	return strings.Join(parts, " -> ")
}
