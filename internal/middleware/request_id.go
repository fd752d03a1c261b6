package middleware

import (
	"net/http"

	"github.com/itsChris/qrcomposer/internal/logging"
)

// maxInboundIDLen bounds client-supplied request IDs.
const maxInboundIDLen = 64

// RequestID injects a request ID into the request context and sets the
// X-Request-ID response header. A well-formed X-Request-ID sent by the
// client is reused so calls can be traced across services; otherwise a
// fresh ID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = logging.GenerateRequestID()
		}
		ctx := logging.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxInboundIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
