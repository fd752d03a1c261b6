package middleware

import (
	"net/http"
)

// DefaultMaxBodySize is 1 MB. Logos travel inline as base64, so this also
// bounds the logo size.
const DefaultMaxBodySize = 1 << 20

// MaxBody limits request body size to the specified number of bytes.
// Handlers see a *http.MaxBytesError once the limit is exceeded.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
