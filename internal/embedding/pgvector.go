// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package embedding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/tomtom215/smartrank/internal/metrics"
)

// Config configures the pgvector index.
type Config struct {
	DSN       string
	Table     string
	Dimension int
	// Timeout bounds every query. Zero leaves only the caller's deadline.
	Timeout  time.Duration
	MaxConns int
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Table:     "item_embeddings",
		Dimension: 384,
		Timeout:   60 * time.Millisecond,
		MaxConns:  16,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !isIdentifier(c.Table) {
		return fmt.Errorf("embedding: invalid table name %q", c.Table)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("embedding: dimension must be at least 1")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("embedding: timeout must not be negative")
	}
	return nil
}

// isIdentifier reports whether s can be interpolated as an unquoted table name.
func isIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open embedding database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping embedding database: %w", err)
	}
	return db, nil
}

// PgvectorIndex implements Index on a Postgres table using the pgvector
// cosine distance operator (<=>).
type PgvectorIndex struct {
	db        *sql.DB
	table     string
	dimension int
	timeout   time.Duration
}

// NewPgvectorIndex creates an index over cfg.Table. The caller owns db.
func NewPgvectorIndex(db *sql.DB, cfg Config) (*PgvectorIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PgvectorIndex{
		db:        db,
		table:     cfg.Table,
		dimension: cfg.Dimension,
		timeout:   cfg.Timeout,
	}, nil
}

func (p *PgvectorIndex) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// EnsureSchema creates the extension, table and HNSW index if missing.
func (p *PgvectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	item_id      TEXT PRIMARY KEY,
	embedding    vector(%d) NOT NULL,
	platform     TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	topics       TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, p.table, p.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
			p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	return nil
}

// Upsert inserts or replaces an entry.
func (p *PgvectorIndex) Upsert(ctx context.Context, e Entry) error {
	if e.ItemID == "" {
		return fmt.Errorf("Upsert: item id is empty")
	}
	if len(e.Embedding) != p.dimension {
		return fmt.Errorf("Upsert: embedding has dimension %d, want %d", len(e.Embedding), p.dimension)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	topics := e.Topics
	if topics == nil {
		topics = []string{}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (item_id, embedding, platform, content_type, topics, created_at)
VALUES ($1, $2, $3, $4, $5::text[], $6)
ON CONFLICT (item_id)
DO UPDATE SET
	embedding = EXCLUDED.embedding,
	platform = EXCLUDED.platform,
	content_type = EXCLUDED.content_type,
	topics = EXCLUDED.topics,
	created_at = EXCLUDED.created_at`, p.table)

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		e.ItemID,
		pgvector.NewVector(e.Embedding),
		e.Platform,
		e.ContentType,
		topics,
		created,
	)
	metrics.RecordEmbeddingQuery("upsert", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// Nearest implements Index.
func (p *PgvectorIndex) Nearest(ctx context.Context, vector []float32, k int, filter Filter) ([]Neighbor, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	args := []any{pgvector.NewVector(vector)}
	where, args := filterClause(filter, args)
	args = append(args, normalizeK(k))

	query := fmt.Sprintf(`
SELECT item_id, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE TRUE%s
ORDER BY embedding <=> $1, item_id
LIMIT $%d`, p.table, where, len(args))

	start := time.Now()
	results, err := p.query(ctx, query, args)
	metrics.RecordEmbeddingQuery("nearest", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("Nearest: %w", err)
	}
	return results, nil
}

// Similar implements Index.
func (p *PgvectorIndex) Similar(ctx context.Context, itemID string, k int, threshold float64, filter Filter) ([]Neighbor, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var ref pgvector.Vector
	err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT embedding FROM %s WHERE item_id = $1`, p.table), itemID,
	).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordEmbeddingQuery("similar", time.Since(start), nil)
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordEmbeddingQuery("similar", time.Since(start), err)
		return nil, fmt.Errorf("Similar: load reference: %w", err)
	}

	args := []any{ref, itemID, threshold}
	where, args := filterClause(filter, args)
	args = append(args, normalizeK(k))

	query := fmt.Sprintf(`
SELECT item_id, 1 - (embedding <=> $1) AS similarity
FROM %s
WHERE item_id <> $2 AND 1 - (embedding <=> $1) >= $3%s
ORDER BY embedding <=> $1, item_id
LIMIT $%d`, p.table, where, len(args))

	results, err := p.query(ctx, query, args)
	metrics.RecordEmbeddingQuery("similar", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("Similar: %w", err)
	}
	return results, nil
}

func (p *PgvectorIndex) query(ctx context.Context, query string, args []any) ([]Neighbor, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]Neighbor, 0)
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ItemID, &n.Similarity); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// filterClause appends metadata predicates with placeholders numbered after
// the existing args.
func filterClause(f Filter, args []any) (string, []any) {
	var b strings.Builder
	if f.Platform != "" {
		args = append(args, f.Platform)
		fmt.Fprintf(&b, " AND platform = $%d", len(args))
	}
	if f.ContentType != "" {
		args = append(args, f.ContentType)
		fmt.Fprintf(&b, " AND content_type = $%d", len(args))
	}
	if len(f.Topics) > 0 {
		args = append(args, f.Topics)
		fmt.Fprintf(&b, " AND topics && $%d::text[]", len(args))
	}
	return b.String(), args
}
