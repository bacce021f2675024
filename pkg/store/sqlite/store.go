// Package sqlite is a durable store.Store backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/levy-ai/levy/pkg/models"
	"github.com/levy-ai/levy/pkg/store"
)

// Store keeps cache entries in a single SQLite table. The seq column records
// insertion order and drives first-in-first-out eviction.
type Store struct {
	db      *sql.DB
	maxSize int
	logger  *slog.Logger
}

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE,
	prompt TEXT NOT NULL,
	response TEXT NOT NULL,
	embedding TEXT,
	created_at INTEGER NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER,
	metadata TEXT
);
`

const selectColumns = `key, prompt, response, embedding, created_at, access_count, expires_at, metadata`

// New opens (or creates) the database at dbPath.
func New(dbPath string, maxSize int, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// SQLite serializes writers anyway; a single connection keeps the
	// count-then-evict-then-insert sequence in one critical section.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createEntriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	if maxSize <= 0 {
		maxSize = store.DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, maxSize: maxSize, logger: logger.With("store", "sqlite")}, nil
}

type row struct {
	key, prompt, response string
	embedding, metadata   sql.NullString
	createdAt             int64
	accessCount           int64
	expiresAt             sql.NullInt64
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (row, error) {
	var r row
	err := s.Scan(&r.key, &r.prompt, &r.response, &r.embedding, &r.createdAt, &r.accessCount, &r.expiresAt, &r.metadata)
	return r, err
}

func (r row) decode() (*models.Entry, error) {
	e := &models.Entry{
		Key:          r.key,
		Prompt:       r.prompt,
		ResponseText: r.response,
		CreatedAt:    time.Unix(0, r.createdAt).UTC(),
		AccessCount:  r.accessCount,
		Metadata:     map[string]any{},
	}
	if r.expiresAt.Valid {
		t := time.Unix(0, r.expiresAt.Int64).UTC()
		e.ExpiresAt = &t
	}
	if r.embedding.Valid {
		if err := json.Unmarshal([]byte(r.embedding.String), &e.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if r.metadata.Valid && r.metadata.String != "" {
		if err := json.Unmarshal([]byte(r.metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return e, nil
}

func encode(e *models.Entry) (embedding, metadata sql.NullString, expiresAt sql.NullInt64, err error) {
	if e.Embedding != nil {
		b, err := json.Marshal(e.Embedding)
		if err != nil {
			return embedding, metadata, expiresAt, fmt.Errorf("encode embedding: %w", err)
		}
		embedding = sql.NullString{String: string(b), Valid: true}
	}
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return embedding, metadata, expiresAt, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	if e.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: e.ExpiresAt.UnixNano(), Valid: true}
	}
	return embedding, metadata, expiresAt, nil
}

// Get returns the entry under key. Rows that fail to decode are reported as
// store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*models.Entry, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM cache_entries WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get: %w", err)
	}
	e, err := r.decode()
	if err != nil {
		s.logger.Warn("skipping malformed entry", "key", key, "error", err)
		return nil, store.ErrNotFound
	}
	return e, nil
}

// Set upserts entry. An existing key keeps its seq, so overwrites never move
// an entry in eviction order.
func (s *Store) Set(ctx context.Context, key string, entry *models.Entry) error {
	embedding, metadata, expiresAt, err := encode(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store set: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE key = ?`, key).Scan(&exists); err != nil {
		return fmt.Errorf("store set: %w", err)
	}
	if exists == 0 {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
			return fmt.Errorf("store set: %w", err)
		}
		if count >= s.maxSize {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM cache_entries WHERE seq = (SELECT MIN(seq) FROM cache_entries)`); err != nil {
				return fmt.Errorf("store evict: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cache_entries (key, prompt, response, embedding, created_at, access_count, expires_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			prompt = excluded.prompt,
			response = excluded.response,
			embedding = excluded.embedding,
			created_at = excluded.created_at,
			access_count = excluded.access_count,
			expires_at = excluded.expires_at,
			metadata = excluded.metadata`,
		key, entry.Prompt, entry.ResponseText, embedding, entry.CreatedAt.UnixNano(), entry.AccessCount, expiresAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("store set: %w", err)
	}
	return tx.Commit()
}

// Update applies fn to the stored entry inside a transaction and writes it
// back without changing its eviction position.
func (s *Store) Update(ctx context.Context, key string, fn func(*models.Entry)) (*models.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanRow(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM cache_entries WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store update: %w", err)
	}
	e, err := r.decode()
	if err != nil {
		s.logger.Warn("skipping malformed entry", "key", key, "error", err)
		return nil, store.ErrNotFound
	}

	fn(e)
	embedding, metadata, expiresAt, err := encode(e)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE cache_entries SET response = ?, embedding = ?, access_count = ?, expires_at = ?, metadata = ? WHERE key = ?`,
		e.ResponseText, embedding, e.AccessCount, expiresAt, metadata, key,
	)
	if err != nil {
		return nil, fmt.Errorf("store update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store update: %w", err)
	}
	return e, nil
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// AllEmbedded scans every row with an embedding in seq order.
func (s *Store) AllEmbedded(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM cache_entries WHERE embedding IS NOT NULL ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("store scan: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store scan: %w", err)
		}
		e, err := r.decode()
		if err != nil {
			s.logger.Warn("skipping malformed entry", "key", r.key, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every row.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("store clear: %w", err)
	}
	return nil
}

// Len counts the stored rows.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store len: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
