package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a stored document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a stored knowledge-base chunk.
type Document struct {
	ID        uuid.UUID      `json:"id"`
	Content   string         `json:"content"`
	SourceURL string         `json:"source_url"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchResult is a document with its cosine distance to the query.
type SearchResult struct {
	Document
	Distance float64 `json:"distance"`
}

// Store persists embedded documents in Postgres (pgvector) and answers
// similarity queries.
type Store struct {
	db       *pgxpool.Pool
	embedder Embedder
	client   *http.Client // used by IngestURL

	chunkSize    int
	chunkOverlap int
}

// NewStore creates a knowledge store.
func NewStore(db *pgxpool.Pool, embedder Embedder) *Store {
	return &Store{
		db:           db,
		embedder:     embedder,
		client:       &http.Client{Timeout: 30 * time.Second},
		chunkSize:    500,
		chunkOverlap: 50,
	}
}

// IngestText chunks, embeds, and stores a document. Returns chunk count.
func (s *Store) IngestText(ctx context.Context, text, sourceURL string) (int, error) {
	chunks := ChunkText(text, s.chunkSize, s.chunkOverlap, sourceURL)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(
			`INSERT INTO knowledge_base (id, content, source_url, embedding, metadata)
			 VALUES ($1, $2, $3, $4::vector, $5)`,
			uuid.New(), c.Text, sourceURL, vectorLiteral(embeddings[i]),
			map[string]any{"chunk_index": c.ChunkIndex},
		)
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	log.Printf("[Knowledge] Ingested %d chunks from %s", len(chunks), sourceURL)
	return len(chunks), nil
}

// Search embeds the query and returns the topK nearest documents by cosine
// distance (smaller is more similar).
func (s *Store) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, content, source_url, metadata, created_at,
				embedding <=> $1::vector AS distance
		 FROM knowledge_base
		 ORDER BY distance ASC
		 LIMIT $2`,
		vectorLiteral(vectors[0]), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.SourceURL, &r.Metadata,
			&r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// List returns stored documents, optionally filtered by source URL.
func (s *Store) List(ctx context.Context, sourceURL string, limit int) ([]Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	sql := `SELECT id, content, source_url, metadata, created_at
			FROM knowledge_base`
	args := []any{limit}
	if sourceURL != "" {
		sql += ` WHERE source_url = $2`
		args = append(args, sourceURL)
	}
	sql += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Content, &d.SourceURL, &d.Metadata, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a stored document.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM knowledge_base WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// vectorLiteral renders a vector in pgvector's '[1,2,3]' text format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
