// Package file persists knowledge in a local JSON document
// {accessToken, verifyToken, knowledgeBase}. The document is rewritten
// atomically on every change and may be watched for external edits.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/pagebot-ai/pagebot/internal/store"
)

// document is the on-disk shape. knowledgeBase is written as an ordered
// array; legacy documents with an object map are still accepted on read.
type document struct {
	AccessToken   string        `json:"accessToken,omitempty"`
	VerifyToken   string        `json:"verifyToken,omitempty"`
	KnowledgeBase knowledgeBase `json:"knowledgeBase"`
}

type knowledgeBase []store.Entry

func (kb *knowledgeBase) UnmarshalJSON(data []byte) error {
	var entries []store.Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		*kb = entries
		return nil
	}
	// Legacy shape: {"id": "text", ...}. Object key order is not
	// recoverable; fall back to lexicographic order, which matches
	// insertion order for generated kn_<ms> ids.
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries = entries[:0]
	for _, id := range ids {
		entries = append(entries, store.Entry{ID: id, Text: m[id]})
	}
	*kb = entries
	return nil
}

// Store is the file-backed Persistence implementation.
type Store struct {
	mu      sync.Mutex
	path    string
	doc     document
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open reads (or initializes) the document at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read store document: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse store document: %w", err)
	}
	return s, nil
}

// Credentials returns tokens stored in the document, if any. Env vars take
// precedence over these at config time.
func (s *Store) Credentials() (accessToken, verifyToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.AccessToken, s.doc.VerifyToken
}

func (s *Store) Load(ctx context.Context) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Entry, len(s.doc.KnowledgeBase))
	copy(out, s.doc.KnowledgeBase)
	return out, nil
}

func (s *Store) SaveEntry(ctx context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i, e := range s.doc.KnowledgeBase {
		if e.ID == id {
			s.doc.KnowledgeBase[i].Text = text
			found = true
			break
		}
	}
	if !found {
		s.doc.KnowledgeBase = append(s.doc.KnowledgeBase, store.Entry{ID: id, Text: text})
	}
	return s.flushLocked()
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.doc.KnowledgeBase {
		if e.ID == id {
			s.doc.KnowledgeBase = append(s.doc.KnowledgeBase[:i], s.doc.KnowledgeBase[i+1:]...)
			return s.flushLocked()
		}
	}
	return nil
}

// flushLocked writes the document atomically: temp file + rename.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".pagebot-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store document: %w", err)
	}
	return nil
}

// Watch reloads the document when it changes on disk and invokes onReload
// with the fresh entries. Our own atomic rewrites also trigger events; the
// reload is idempotent so that is harmless.
func (s *Store) Watch(onReload func([]store.Entry)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: rename-based rewrites replace the inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch store directory: %w", err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	base := filepath.Base(s.path)

	go func() {
		defer close(s.done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				entries, err := s.reload()
				if err != nil {
					slog.Warn("store.file_reload_failed", "path", s.path, "error", err)
					continue
				}
				slog.Debug("store.file_reloaded", "path", s.path, "entries", len(entries))
				onReload(entries)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("store.file_watch_error", "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) reload() ([]store.Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.doc = doc
	entries := make([]store.Entry, len(doc.KnowledgeBase))
	copy(entries, doc.KnowledgeBase)
	s.mu.Unlock()
	return entries, nil
}

func (s *Store) Close() error {
	if s.watcher != nil {
		err := s.watcher.Close()
		<-s.done
		if err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			return err
		}
	}
	return nil
}
