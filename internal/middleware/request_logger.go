package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/itsChris/qrcomposer/internal/logging"
)

// maxLoggedBody caps request and response bodies logged in dev mode.
const maxLoggedBody = 64 << 10

// RequestLogger logs every HTTP request and response. In dev mode, JSON
// request and response bodies are included for debugging; SVG output and
// other media are only counted.
func RequestLogger(logger *slog.Logger, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			attrs := []any{
				"request_id", logging.RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"component", "http",
			}

			if devMode && r.Body != nil && r.ContentLength > 0 && r.ContentLength < maxLoggedBody {
				body, err := io.ReadAll(r.Body)
				if err == nil {
					r.Body = io.NopCloser(bytes.NewReader(body))
					attrs = append(attrs, "request_body", string(body))
				}
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, capture: devMode}
			next.ServeHTTP(wrapped, r)

			attrs = append(attrs,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes_written", wrapped.bytesWritten,
			)

			if devMode && wrapped.body.Len() > 0 && isJSON(wrapped.Header().Get("Content-Type")) {
				attrs = append(attrs, "response_body", wrapped.body.String())
			}

			level := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				level = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", attrs...)
		})
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

// responseWriter wraps http.ResponseWriter to capture status code, bytes
// written, and optionally the start of the response body.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
	capture      bool
	body         bytes.Buffer
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	if w.capture && w.body.Len() < maxLoggedBody {
		w.body.Write(b[:min(len(b), maxLoggedBody-w.body.Len())])
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController access the underlying ResponseWriter.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
