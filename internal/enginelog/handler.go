// Package enginelog provides a log/slog handler that tees warning-and-above
// records into an in-memory ring buffer, so a host process can surface recent
// engine warnings without re-reading log files.
package enginelog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Source  string // accumulated slog group name, dot-separated
}

// EntryCallback is invoked for each record at or above the handler's minLevel.
type EntryCallback func(Entry)

// TeeHandler wraps a base [slog.Handler] and tees records at or above minLevel
// to a callback. All records are forwarded to the base handler regardless of
// level; only the callback invocation is gated by minLevel.
type TeeHandler struct {
	base     slog.Handler
	callback EntryCallback
	minLevel slog.Level
	group    string
}

// NewTeeHandler creates a TeeHandler that delegates to base and invokes callback
// for every record whose level is >= minLevel. A nil callback is safe: the
// handler simply delegates to base without teeing.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback EntryCallback) *TeeHandler {
	return &TeeHandler{base: base, callback: callback, minLevel: minLevel}
}

func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards the record to the base handler, then conditionally invokes
// the callback. The callback runs regardless of base handler error.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		func() {
			defer func() {
				if r := recover(); r != nil {
					// Logged directly to stderr, not slog, to avoid recursive
					// handler invocation.
					fmt.Fprintf(os.Stderr, "[enginelog] callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.callback(Entry{
				Time:    record.Time,
				Level:   record.Level,
				Message: record.Message,
				Source:  h.group,
			})
		}()
	}

	return err
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &TeeHandler{base: h.base.WithAttrs(attrs), callback: h.callback, minLevel: h.minLevel, group: h.group}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}
	return &TeeHandler{base: h.base.WithGroup(name), callback: h.callback, minLevel: h.minLevel, group: newGroup}
}

// RingBuffer is a fixed-capacity, thread-safe buffer of recent entries, fed by
// a TeeHandler callback via Push.
type RingBuffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	full     bool
}

// NewRingBuffer creates a buffer holding at most capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{entries: make([]Entry, capacity), capacity: capacity}
}

// Push implements EntryCallback.
func (b *RingBuffer) Push(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
}

// Recent returns captured entries in chronological order (oldest first).
func (b *RingBuffer) Recent() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		out := make([]Entry, b.next)
		copy(out, b.entries[:b.next])
		return out
	}
	out := make([]Entry, b.capacity)
	copy(out, b.entries[b.next:])
	copy(out[b.capacity-b.next:], b.entries[:b.next])
	return out
}
