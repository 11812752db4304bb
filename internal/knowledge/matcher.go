package knowledge

import (
	"log/slog"
	"strings"
)

// FindAnswer searches the store for a canned reply to message.
//
// The input is lower-cased and trimmed; an empty result never matches. An
// entry matches when the normalized input contains the entry's id
// (case-insensitive substring containment — the direction is deployment
// policy and fixed here). Entries are scanned in insertion order and the
// first match wins; there is no ranking.
func (s *Store) FindAnswer(message string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if strings.Contains(normalized, strings.ToLower(id)) {
			slog.Info("knowledge.match", "id", id)
			return s.entries[id], true
		}
	}
	slog.Debug("knowledge.no_match")
	return "", false
}
