package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperr "github.com/itsChris/qrcomposer/internal/errors"
	"github.com/itsChris/qrcomposer/internal/logging"
)

// RateLimiter counts requests per client over a sliding window.
type RateLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	stopped sync.Once
}

// NewRateLimiter allows limit requests per window per client and starts a
// background sweep of idle clients. Call Stop to end it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go l.sweep(window)
	return l
}

// Allow records a request from client. When the limit is exceeded it
// returns false and how long until the oldest request leaves the window.
func (l *RateLimiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := prune(l.hits[client], now.Add(-l.window))
	if len(valid) >= l.limit {
		l.hits[client] = valid
		return false, valid[0].Add(l.window).Sub(now)
	}
	l.hits[client] = append(valid, now)
	return true, 0
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopped.Do(func() { close(l.done) })
}

// clients reports how many clients are tracked.
func (l *RateLimiter) clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *RateLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for client, ts := range l.hits {
		if valid := prune(ts, cutoff); len(valid) == 0 {
			delete(l.hits, client)
		} else {
			l.hits[client] = valid
		}
	}
}

// prune drops timestamps at or before cutoff, reusing ts.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	valid := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

// RateLimit rejects requests over the limiter's budget with 429. The
// client is the remote IP; forwarding headers are not trusted.
func RateLimit(l *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			ok, retry := l.Allow(client)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			requestID := logging.RequestID(r.Context())
			logger.Warn("rate_limited",
				"remote_addr", client,
				"path", r.URL.Path,
				"retry_after", retry.String(),
				"request_id", requestID,
				"component", "http",
			)

			seconds := int(math.Ceil(retry.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w,
				`{"error":{"code":%q,"message":"too many requests","request_id":%q}}`,
				apperr.ErrRateLimited, requestID,
			)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
