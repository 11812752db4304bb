// Package store defines the knowledge persistence collaborator: the
// external sync target behind the in-memory knowledge mirror. Two backends
// exist, a local JSON document (file) and Postgres (pg).
package store

import "context"

// Entry is one persisted knowledge pair.
type Entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Persistence is the opaque key-value sync target for knowledge entries.
// Implementations must preserve insertion order on Load.
type Persistence interface {
	// Load returns all entries in insertion order. An empty backend is not
	// an error and yields an empty slice.
	Load(ctx context.Context) ([]Entry, error)

	// SaveEntry upserts one entry.
	SaveEntry(ctx context.Context, id, text string) error

	// DeleteEntry removes one entry. Deleting an absent id is a no-op.
	DeleteEntry(ctx context.Context, id string) error

	Close() error
}
