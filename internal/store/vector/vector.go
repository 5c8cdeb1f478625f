// Package vector implements the pgvector-backed similarity searcher, the
// indexed alternative to the default brute-force strategy.
package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"curator/internal/store"
)

type Searcher struct {
	db *pgxpool.Pool
}

// NewSearcher connects to Postgres and ensures the prototype_vectors table
// exists. Requires the pgvector extension.
func NewSearcher(ctx context.Context, dsn string, dimensions int) (*Searcher, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector searcher DSN cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector searcher DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector searcher: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS prototype_vectors (
		id TEXT PRIMARY KEY,
		vector vector(%d) NOT NULL
	)`, dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure prototype_vectors table: %w", err)
	}

	log.Info("Connected to PostgreSQL vector searcher.")
	return &Searcher{db: pool}, nil
}

func (s *Searcher) Upsert(ctx context.Context, id string, embedding pgvector.Vector) error {
	query := `INSERT INTO prototype_vectors (id, vector) VALUES ($1, $2)
	          ON CONFLICT (id) DO UPDATE SET vector = EXCLUDED.vector`
	if _, err := s.db.Exec(ctx, query, id, embedding); err != nil {
		return fmt.Errorf("upsert prototype vector: %w", err)
	}
	return nil
}

func (s *Searcher) Remove(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM prototype_vectors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove prototype vector: %w", err)
	}
	return nil
}

// Search returns the k nearest prototypes by cosine similarity, filtered by
// minSimilarity. pgvector's <=> operator is cosine distance, so similarity
// is 1 - distance.
func (s *Searcher) Search(ctx context.Context, query pgvector.Vector, k int, minSimilarity float64) ([]store.Match, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, 1 - (vector <=> $1) AS similarity
		 FROM prototype_vectors
		 ORDER BY vector <=> $1
		 LIMIT $2`, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search query: %w", err)
	}
	defer rows.Close()

	var matches []store.Match
	for rows.Next() {
		var m store.Match
		if err := rows.Scan(&m.ID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan similarity search row: %w", err)
		}
		if m.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity search rows: %w", err)
	}
	return matches, nil
}

func (s *Searcher) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Searcher) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

var _ store.SimilaritySearcher = (*Searcher)(nil)
