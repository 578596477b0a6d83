package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store runs vector similarity searches over the evidence_chunks table.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an evidence store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Search returns the k nearest chunks in a domain, scoped to one agent.
// Results are ordered by cosine distance, nearest first.
func (s *Store) Search(ctx context.Context, domain, agentID string, embedding []float32, k int) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, chunk_id, content, 1 - (embedding <=> $1) AS similarity
		 FROM evidence_chunks
		 WHERE domain = $2 AND agent_id = $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(embedding), domain, agentID, k)
	if err != nil {
		return nil, fmt.Errorf("searching %s chunks: %w", domain, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item := Item{Metadata: Metadata{SourceCategory: domain}}
		if err := rows.Scan(
			&item.Metadata.SourceID,
			&item.Metadata.ChunkID,
			&item.Content,
			&item.Metadata.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning %s chunk: %w", domain, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s chunks: %w", domain, err)
	}

	s.logger.Debug("similarity search completed",
		"domain", domain,
		"agent_id", agentID,
		"results", len(items))
	return items, nil
}

// Add inserts an embedded chunk. Used by ingestion and tests.
func (s *Store) Add(ctx context.Context, domain, sourceID string, chunkID int, agentID, content string, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO evidence_chunks (domain, source_id, chunk_id, agent_id, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		domain, sourceID, chunkID, agentID, content, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("inserting %s chunk: %w", domain, err)
	}
	return nil
}
