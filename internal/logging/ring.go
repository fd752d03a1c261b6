package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRingSize is the default number of entries kept in the ring buffer.
const DefaultRingSize = 500

// LogEntry is one record captured by the ring buffer.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     slog.Level     `json:"level"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// RingBuffer is a thread-safe circular buffer for log entries.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	pos     int
	count   int
}

// NewRingBuffer creates a ring buffer that holds the last size entries.
// A size below 1 is raised to 1.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write adds a log entry, overwriting the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries[rb.pos] = entry
	rb.pos = (rb.pos + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
}

// Recent returns up to n of the newest entries in chronological order.
func (rb *RingBuffer) Recent(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}

	size := len(rb.entries)
	result := make([]LogEntry, n)
	start := (rb.pos - n + size) % size
	for i := range result {
		result[i] = rb.entries[(start+i)%size]
	}
	return result
}

// Len returns the number of entries currently stored.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// ringHandler forwards to primary and copies WARN+ records into ring.
type ringHandler struct {
	primary slog.Handler
	ring    *RingBuffer
	attrs   []slog.Attr
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level)
}

func (h *ringHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			attrs[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value.Any()
			return true
		})
		h.ring.Write(LogEntry{
			Timestamp: r.Time,
			Level:     r.Level,
			Message:   r.Message,
			Attrs:     attrs,
		})
	}
	return h.primary.Handle(ctx, r)
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ringHandler{
		primary: h.primary.WithAttrs(attrs),
		ring:    h.ring,
		attrs:   merged,
	}
}

// WithGroup groups primary output only; ring entries stay flat.
func (h *ringHandler) WithGroup(name string) slog.Handler {
	return &ringHandler{
		primary: h.primary.WithGroup(name),
		ring:    h.ring,
		attrs:   h.attrs,
	}
}
