// Package vectorstore implements the knowledge.Store port against Postgres
// with the pgvector extension.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/wl4g-collab/botwaf-go/internal/domain/knowledge"
)

// Config configures the pgvector-backed store (§6 services.vector_store).
type Config struct {
	DSN       string
	Dimension int
}

// Store implements knowledge.Store against a `botwaf_documents` table with a
// pgvector column, embedding text through the injected Embedder.
type Store struct {
	pool     *pgxpool.Pool
	embedder knowledge.Embedder
}

var _ knowledge.Store = (*Store)(nil)

// New connects to Postgres and ensures the schema exists (extension, table,
// btree index on namespace), matching dimension.
func New(ctx context.Context, cfg Config, embedder knowledge.Embedder) (*Store, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect: %w", err)
	}

	s := &Store{pool: pool, embedder: embedder}
	if err := s.ensureSchema(ctx, cfg.Dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS botwaf_documents (
			id UUID PRIMARY KEY,
			namespace TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS botwaf_documents_namespace_idx ON botwaf_documents (namespace)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("vectorstore: schema setup: %w", err)
		}
	}
	return nil
}

// Upsert embeds docs and inserts them, returning their generated ids.
func (s *Store) Upsert(ctx context.Context, docs []knowledge.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("vectorstore: embedder returned %d vectors for %d docs", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	batch := &pgx.Batch{}
	for i, d := range docs {
		id := uuid.New()
		ids[i] = id.String()
		metadata := toJSONMap(d.Metadata)
		batch.Queue(
			`INSERT INTO botwaf_documents (id, namespace, content, metadata, embedding) VALUES ($1, $2, $3, $4, $5)`,
			id, string(d.Namespace), d.Content, metadata, pgvector.NewVector(vectors[i]),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("vectorstore: upsert: %w", err)
		}
	}

	return ids, nil
}

// Query embeds text and returns up to topK nearest documents in ns scoring
// at or above threshold, using pgvector's cosine distance operator.
func (s *Store) Query(ctx context.Context, ns knowledge.Namespace, text string, topK int, threshold float64) ([]knowledge.ScoredDocument, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	queryVec := pgvector.NewVector(vectors[0])

	rows, err := s.pool.Query(ctx,
		`SELECT content, metadata, 1 - (embedding <=> $1) AS score
		 FROM botwaf_documents
		 WHERE namespace = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		queryVec, string(ns), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var results []knowledge.ScoredDocument
	for rows.Next() {
		var content string
		var metadata map[string]any
		var score float64
		if err := rows.Scan(&content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan: %w", err)
		}
		if score < threshold {
			continue
		}
		results = append(results, knowledge.ScoredDocument{
			Document: knowledge.Document{
				Content:   content,
				Metadata:  toStringMap(metadata),
				Namespace: ns,
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: rows: %w", err)
	}

	return results, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func toJSONMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toStringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
