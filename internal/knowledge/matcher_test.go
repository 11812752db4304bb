package knowledge

import (
	"context"
	"testing"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := NewStore(&fakeBackend{})
	s.Set(ctx, "promo", "This month: buy one get one free")
	s.Set(ctx, "hours", "Open 9-18 on weekdays")
	return s
}

func TestFindAnswer(t *testing.T) {
	s := seededStore(t)

	tests := []struct {
		name    string
		message string
		want    string
		wantOK  bool
	}{
		{"exact id", "promo", "This month: buy one get one free", true},
		{"id inside sentence", "tell me about the PROMO please", "This month: buy one get one free", true},
		{"case-insensitive id", "HOURS?", "Open 9-18 on weekdays", true},
		{"no entry id present", "shipping cost", "", false},
		{"empty input", "", "", false},
		{"whitespace input", "   \n ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.FindAnswer(tt.message)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FindAnswer(%q) = %q, %v; want %q, %v", tt.message, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFindAnswerShortIDMatchesInsideWord(t *testing.T) {
	// Containment is plain substring: a one-letter id matches inside any
	// word carrying that letter.
	ctx := context.Background()
	s := NewStore(&fakeBackend{})
	s.Set(ctx, "o", "Catch-all entry with a very short id")

	got, ok := s.FindAnswer("shipping cost")
	if !ok || got != "Catch-all entry with a very short id" {
		t.Errorf("FindAnswer(%q) = %q, %v; want the catch-all entry", "shipping cost", got, ok)
	}
}

func TestFindAnswerFirstMatchWins(t *testing.T) {
	s := seededStore(t)

	// "promo hours" contains both ids; "promo" was inserted first.
	got, ok := s.FindAnswer("promo hours")
	if !ok || got != "This month: buy one get one free" {
		t.Errorf("FindAnswer(two ids) = %q, %v; want first entry in store order", got, ok)
	}
}

func TestFindAnswerEmptyStore(t *testing.T) {
	s := NewStore(&fakeBackend{})
	if _, ok := s.FindAnswer("anything"); ok {
		t.Error("FindAnswer on empty store matched")
	}
}
