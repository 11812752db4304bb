// Package logbuf keeps a bounded in-memory ring of recent log records for
// the dashboard log viewer. It plugs into log/slog as a handler that tees
// every record into the ring while delegating to the normal output handler.
package logbuf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity matches the dashboard's log page size.
const DefaultCapacity = 200

// Entry is one captured log record, newest-first in Snapshot output.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Ring is a fixed-capacity append-only log sink. Oldest entries are evicted
// first. Safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	start    int
	count    int
	capacity int
	subs     map[int]chan Entry
	nextSub  int
}

// NewRing creates a ring with the given capacity (DefaultCapacity if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		subs:     make(map[int]chan Entry),
	}
}

// Append records one entry, evicting the oldest when full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	if r.count < r.capacity {
		r.entries[(r.start+r.count)%r.capacity] = e
		r.count++
	} else {
		r.entries[r.start] = e
		r.start = (r.start + 1) % r.capacity
	}
	subs := make([]chan Entry, 0, len(r.subs))
	for _, ch := range r.subs {
		subs = append(subs, ch)
	}
	r.mu.Unlock()

	// Slow subscribers drop entries rather than block logging.
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Snapshot returns all entries, newest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, r.count)
	for i := 0; i < r.count; i++ {
		out[r.count-1-i] = r.entries[(r.start+i)%r.capacity]
	}
	return out
}

// Len returns the current number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Subscribe registers a live feed of appended entries. The returned cancel
// func must be called to release the subscription.
func (r *Ring) Subscribe() (<-chan Entry, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Entry, 64)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Handler is a slog.Handler that records into a Ring and forwards to next.
type Handler struct {
	next  slog.Handler
	ring  *Ring
	attrs []slog.Attr
	group string
}

// NewHandler wraps next so every record also lands in ring.
func NewHandler(next slog.Handler, ring *Ring) *Handler {
	return &Handler{next: next, ring: ring}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	writeAttr := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	rec.Attrs(writeAttr)

	h.ring.Append(Entry{
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: b.String(),
	})
	return h.next.Handle(ctx, rec)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{next: h.next.WithAttrs(attrs), ring: h.ring, attrs: merged, group: h.group}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), ring: h.ring, attrs: h.attrs, group: name}
}
