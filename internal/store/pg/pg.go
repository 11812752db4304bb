// Package pg persists knowledge in Postgres. Schema lives in migrations/
// and is applied with `pagebot migrate up`.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pagebot-ai/pagebot/internal/store"
)

// OpenDB opens and pings a Postgres connection pool.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Store is the Postgres-backed Persistence implementation.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM knowledge_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []store.Entry
	for rows.Next() {
		var e store.Entry
		if err := rows.Scan(&e.ID, &e.Text); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge entries: %w", err)
	}
	return entries, nil
}

func (s *Store) SaveEntry(ctx context.Context, id, text string) error {
	// Updates keep the original position so store order stays stable.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (id, text) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, updated_at = now()`,
		id, text)
	if err != nil {
		return fmt.Errorf("save knowledge entry %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete knowledge entry %s: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
