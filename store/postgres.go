package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const linksSchema = `
CREATE TABLE IF NOT EXISTS bunny_collections (
	user_id       TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL,
	library_id    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresLinks persists user-collection associations so several hosts
// share the same view of which collection belongs to whom.
type PostgresLinks struct {
	pool      *pgxpool.Pool
	libraryID string
}

// NewPostgresLinks opens a pool using dsn. Rows are tagged with libraryID.
func NewPostgresLinks(ctx context.Context, dsn, libraryID string) (*PostgresLinks, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres links dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres links config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres links pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresLinks{pool: pool, libraryID: libraryID}, nil
}

// EnsureSchema creates the bunny_collections table when missing.
func (s *PostgresLinks) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, linksSchema); err != nil {
		return fmt.Errorf("create bunny_collections: %w", err)
	}
	return nil
}

func (s *PostgresLinks) Get(ctx context.Context, userID string) (string, error) {
	if s == nil || s.pool == nil {
		return "", ErrNotConfigured
	}
	var collectionID string
	err := s.pool.QueryRow(ctx, `SELECT collection_id FROM bunny_collections WHERE user_id = $1`, userID).Scan(&collectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select collection for user %s: %w", userID, err)
	}
	return collectionID, nil
}

func (s *PostgresLinks) Put(ctx context.Context, userID, collectionID string) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if userID == "" {
		return ErrEmptyKey
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO bunny_collections (user_id, collection_id, library_id)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET collection_id = EXCLUDED.collection_id, library_id = EXCLUDED.library_id
`, userID, collectionID, s.libraryID)
	if err != nil {
		return fmt.Errorf("upsert collection for user %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresLinks) Delete(ctx context.Context, userID string) error {
	if s == nil || s.pool == nil {
		return ErrNotConfigured
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM bunny_collections WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete collection for user %s: %w", userID, err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresLinks) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
