package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pagebot.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestOpenMissingFileYieldsEmptyStore(t *testing.T) {
	s := openTemp(t)
	entries, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Load() = %d entries, want 0", len(entries))
	}
}

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.SaveEntry(ctx, "kn_1", "Hi there\nWelcome"); err != nil {
		t.Fatalf("SaveEntry() error = %v", err)
	}
	if err := s.SaveEntry(ctx, "kn_2", "Second"); err != nil {
		t.Fatalf("SaveEntry() error = %v", err)
	}

	// Reopen to prove durability and order.
	s2, err := Open(s.path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	entries, _ := s2.Load(ctx)
	if len(entries) != 2 || entries[0].ID != "kn_1" || entries[1].ID != "kn_2" {
		t.Fatalf("Load() after reopen = %+v, want kn_1 then kn_2", entries)
	}
	if entries[0].Text != "Hi there\nWelcome" {
		t.Errorf("text = %q", entries[0].Text)
	}

	if err := s2.DeleteEntry(ctx, "kn_1"); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	entries, _ = s2.Load(ctx)
	if len(entries) != 1 || entries[0].ID != "kn_2" {
		t.Errorf("after delete = %+v", entries)
	}
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	s := openTemp(t)
	if err := s.DeleteEntry(context.Background(), "missing"); err != nil {
		t.Errorf("DeleteEntry(absent) error = %v, want nil", err)
	}
}

func TestUpsertKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	s.SaveEntry(ctx, "a", "one")
	s.SaveEntry(ctx, "b", "two")
	s.SaveEntry(ctx, "a", "updated")

	entries, _ := s.Load(ctx)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != "a" || entries[0].Text != "updated" {
		t.Errorf("entries[0] = %+v, want a/updated in original position", entries[0])
	}
}

func TestLegacyObjectDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagebot.json")
	legacy := `{"accessToken":"at","verifyToken":"vt","knowledgeBase":{"kn_100":"old","kn_200":"newer"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(legacy) error = %v", err)
	}

	at, vt := s.Credentials()
	if at != "at" || vt != "vt" {
		t.Errorf("Credentials() = %q, %q", at, vt)
	}

	entries, _ := s.Load(context.Background())
	if len(entries) != 2 || entries[0].ID != "kn_100" || entries[1].ID != "kn_200" {
		t.Errorf("legacy entries = %+v, want id order", entries)
	}
}

func TestFlushWritesArrayDocument(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	s.SaveEntry(ctx, "kn_1", "text")

	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		KnowledgeBase []struct {
			ID string `json:"id"`
		} `json:"knowledgeBase"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document is not array-shaped: %v\n%s", err, data)
	}
	if len(doc.KnowledgeBase) != 1 || doc.KnowledgeBase[0].ID != "kn_1" {
		t.Errorf("doc = %s", data)
	}
}
