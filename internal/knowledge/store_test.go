package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pagebot-ai/pagebot/internal/store"
)

// fakeBackend records persistence calls and can be told to fail.
type fakeBackend struct {
	mu      sync.Mutex
	entries []store.Entry
	saves   []string
	deletes []string
	fail    bool
}

var errBackend = errors.New("backend down")

func (f *fakeBackend) Load(ctx context.Context) ([]store.Entry, error) {
	if f.fail {
		return nil, errBackend
	}
	return f.entries, nil
}

func (f *fakeBackend) SaveEntry(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, id)
	if f.fail {
		return errBackend
	}
	return nil
}

func (f *fakeBackend) DeleteEntry(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if f.fail {
		return errBackend
	}
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func TestSetGetRoundTrip(t *testing.T) {
	s := NewStore(&fakeBackend{})
	if err := s.Set(context.Background(), "kn_1", "  trimmed text  "); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := s.Get("kn_1")
	if !ok || got != "trimmed text" {
		t.Errorf("Get() = %q, %v; want trimmed text", got, ok)
	}
}

func TestSetEmptyTextRejected(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)
	if err := s.Set(context.Background(), "kn_1", "   \n  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Set(empty) error = %v, want ErrEmptyText", err)
	}
	if s.Len() != 0 {
		t.Error("empty text was stored")
	}
	if len(b.saves) != 0 {
		t.Error("empty text reached the backend")
	}
}

func TestSetSurvivesPersistenceFailure(t *testing.T) {
	b := &fakeBackend{fail: true}
	s := NewStore(b)

	err := s.Set(context.Background(), "kn_1", "answer")
	if err == nil {
		t.Fatal("Set() with failing backend returned nil error")
	}
	// Local state stays authoritative for subsequent reads.
	if got, ok := s.Get("kn_1"); !ok || got != "answer" {
		t.Errorf("Get() after failed persist = %q, %v; want answer, true", got, ok)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)
	if err := s.Delete(context.Background(), "ghost"); err != nil {
		t.Errorf("Delete(absent) error = %v, want nil", err)
	}
	if len(b.deletes) != 0 {
		t.Error("absent delete reached the backend")
	}
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeBackend{})
	for _, id := range []string{"c", "a", "b"} {
		s.Set(ctx, id, "text "+id)
	}
	// Update must not move an entry.
	s.Set(ctx, "c", "updated")

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(all))
	}
	wantOrder := []string{"c", "a", "b"}
	for i, w := range wantOrder {
		if all[i].ID != w {
			t.Errorf("All()[%d].ID = %q, want %q", i, all[i].ID, w)
		}
	}
	if all[0].Text != "updated" {
		t.Errorf("updated entry text = %q", all[0].Text)
	}
}

func TestLoadFromBackend(t *testing.T) {
	b := &fakeBackend{entries: []store.Entry{{ID: "kn_1", Text: "one"}, {ID: "kn_2", Text: "two"}}}
	s := NewStore(b)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestContextText(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeBackend{})
	if s.ContextText() != "" {
		t.Error("empty store context should be empty")
	}
	s.Set(ctx, "a", "first")
	s.Set(ctx, "b", "second")
	if got := s.ContextText(); got != "first\n\nsecond" {
		t.Errorf("ContextText() = %q", got)
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if !strings.HasPrefix(id, "kn_") || len(id) <= 3 {
		t.Errorf("GenerateID() = %q, want kn_<ms>", id)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&fakeBackend{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			s.Set(ctx, id, "text")
			s.Get(id)
			s.All()
			s.FindAnswer("text " + id)
			s.Delete(ctx, id)
		}(i)
	}
	wg.Wait()
	if s.Len() != 0 {
		t.Errorf("Len() after concurrent set/delete = %d, want 0", s.Len())
	}
}
