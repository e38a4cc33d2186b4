// Package database persists vector indexes in PostgreSQL with the pgvector
// extension.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"multimodal-rag/internal/index"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
)

// DB represents the database connection
type DB struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, connStr string, log *slog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, Logger: logger.OrNop(log)}, nil
}

// Initialize sets up the vector extension and the index tables
func (db *DB) Initialize(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS doc_indexes (
			index_id        TEXT PRIMARY KEY,
			embedding_model TEXT NOT NULL,
			dimensions      INTEGER NOT NULL,
			entry_count     INTEGER NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create doc_indexes table: %w", err)
	}

	// Dimensions vary per index, so the column is untyped and search is exact
	_, err = db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS index_entries (
			index_id    TEXT NOT NULL REFERENCES doc_indexes (index_id) ON DELETE CASCADE,
			position    INTEGER NOT NULL,
			text        TEXT NOT NULL,
			page        INTEGER NOT NULL DEFAULT 0,
			kind        TEXT NOT NULL,
			raw_content TEXT NOT NULL,
			embedding   vector NOT NULL,
			PRIMARY KEY (index_id, position)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index_entries table: %w", err)
	}

	return nil
}

// Save replaces the index m.IndexID with entries in a single transaction
func (db *DB) Save(ctx context.Context, m index.Manifest, entries []index.Entry) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM doc_indexes WHERE index_id = $1`, m.IndexID); err != nil {
		return fmt.Errorf("failed to delete previous index: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO doc_indexes (index_id, embedding_model, dimensions, entry_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.IndexID, m.EmbeddingModel, m.Dimensions, m.Count, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store manifest: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO index_entries (index_id, position, text, page, kind, raw_content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, m.IndexID, e.Position, e.Text, e.Metadata.Page, string(e.Metadata.Kind), e.Metadata.RawContent,
			pgvector.NewVector(e.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	db.Logger.Debug("stored index", "index_id", m.IndexID, "entries", len(entries))
	return nil
}

// Load returns a handle that searches the stored index
func (db *DB) Load(ctx context.Context, indexID string) (index.Handle, error) {
	var m index.Manifest
	err := db.Pool.QueryRow(ctx, `
		SELECT index_id, embedding_model, dimensions, entry_count, created_at
		FROM doc_indexes
		WHERE index_id = $1
	`, indexID).Scan(&m.IndexID, &m.EmbeddingModel, &m.Dimensions, &m.Count, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, index.NotFound(indexID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()

	return &handle{db: db, manifest: m}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

type handle struct {
	db       *DB
	manifest index.Manifest
}

func (h *handle) Manifest() index.Manifest { return h.manifest }

// Search finds the entries closest to vector by cosine distance
func (h *handle) Search(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(vector) != h.manifest.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index %q has %d",
			len(vector), h.manifest.IndexID, h.manifest.Dimensions)
	}

	rows, err := h.db.Pool.Query(ctx, `
		SELECT position, text, page, kind, raw_content, embedding::text,
		       1 - (embedding <=> $2) AS score
		FROM index_entries
		WHERE index_id = $1
		ORDER BY embedding <=> $2, position
		LIMIT $3
	`, h.manifest.IndexID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar entries: %w", err)
	}
	return processRows(rows)
}

func processRows(rows pgx.Rows) ([]index.Hit, error) {
	defer rows.Close()

	var hits []index.Hit
	for rows.Next() {
		var (
			hit       index.Hit
			kind      string
			vectorTxt string
		)
		if err := rows.Scan(
			&hit.Entry.Position,
			&hit.Entry.Text,
			&hit.Entry.Metadata.Page,
			&kind,
			&hit.Entry.Metadata.RawContent,
			&vectorTxt,
			&hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var vec pgvector.Vector
		if err := vec.Scan(vectorTxt); err != nil {
			return nil, fmt.Errorf("failed to parse embedding: %w", err)
		}
		hit.Entry.Vector = vec.Slice()
		hit.Entry.Metadata.Kind = models.Kind(kind)

		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return hits, nil
}
