// Package knowledge holds the in-memory mirror of curated reply entries
// and the first-match lookup used by the relay pipeline. The mirror is the
// authoritative copy between persistence syncs: writes land locally first
// and are pushed through to the backend, and a failed backend write never
// rolls the local state back.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pagebot-ai/pagebot/internal/store"
)

// ErrEmptyText rejects saves whose text trims to nothing.
var ErrEmptyText = errors.New("knowledge: empty text")

// Store is the mutex-guarded, insertion-ordered knowledge mirror.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]string
	backend store.Persistence
}

// NewStore creates an empty mirror over the given persistence backend.
func NewStore(backend store.Persistence) *Store {
	return &Store{
		entries: make(map[string]string),
		backend: backend,
	}
}

// Load replaces the mirror with the backend's contents. A backend without
// data yields an empty store.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load knowledge: %w", err)
	}
	s.Replace(entries)
	slog.Info("knowledge.loaded", "entries", len(entries))
	return nil
}

// Replace swaps the full mirror contents atomically (startup load, file
// watcher reloads).
func (s *Store) Replace(entries []store.Entry) {
	order := make([]string, 0, len(entries))
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, dup := m[e.ID]; dup {
			continue
		}
		order = append(order, e.ID)
		m[e.ID] = e.Text
	}

	s.mu.Lock()
	s.order = order
	s.entries = m
	s.mu.Unlock()
}

// Get returns the stored text for id.
func (s *Store) Get(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.entries[id]
	return text, ok
}

// Set upserts an entry. Text is trimmed; a trimmed-empty text is rejected
// with ErrEmptyText and nothing is stored. The in-memory mirror is updated
// before the backend write; if the backend write fails the error is
// returned but local state keeps the new value (availability over
// durability, matching the original system).
func (s *Store) Set(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	if _, exists := s.entries[id]; !exists {
		s.order = append(s.order, id)
	}
	s.entries[id] = text
	s.mu.Unlock()

	if err := s.backend.SaveEntry(ctx, id, text); err != nil {
		slog.Error("knowledge.persist_failed", "id", id, "error", err)
		return fmt.Errorf("persist knowledge entry: %w", err)
	}
	slog.Info("knowledge.saved", "id", id)
	return nil
}

// Delete removes an entry if present; deleting an absent id is a no-op.
// As with Set, the local removal survives a failed backend delete.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, exists := s.entries[id]
	if exists {
		delete(s.entries, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !exists {
		return nil
	}
	if err := s.backend.DeleteEntry(ctx, id); err != nil {
		slog.Error("knowledge.delete_persist_failed", "id", id, "error", err)
		return fmt.Errorf("delete knowledge entry: %w", err)
	}
	slog.Info("knowledge.deleted", "id", id)
	return nil
}

// All returns the entries in insertion/load order.
func (s *Store) All() []store.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, store.Entry{ID: id, Text: s.entries[id]})
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ContextText concatenates all entry texts in store order, separated by a
// blank line, for the fallback prompt.
func (s *Store) ContextText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.order))
	for _, id := range s.order {
		parts = append(parts, s.entries[id])
	}
	return strings.Join(parts, "\n\n")
}

// GenerateID returns a fresh monotonic-time-based entry id.
func GenerateID() string {
	return fmt.Sprintf("kn_%d", time.Now().UnixMilli())
}
