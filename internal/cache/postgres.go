package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fenwicklabs/testselect/internal/db"
	"github.com/fenwicklabs/testselect/internal/graph"
)

// NewPool opens a connection pool for a PostgresStore.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, databaseURL)
}

// PostgresStore is an alternate GraphStore backend for deployments that
// run the server against a shared Postgres instance instead of a local
// cache file, so multiple server replicas see the same graph snapshot.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. EnsureSchema must be called
// once before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the backing table if it doesn't already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS testselect_graphs (
			root TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			payload BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("cache: ensuring schema: %w", err)
	}
	return nil
}

// Load fetches the graph stored for projectRoot. A missing row is not an
// error: it returns (nil, nil).
func (s *PostgresStore) Load(ctx context.Context, projectRoot string) (*graph.Graph, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM testselect_graphs WHERE root = $1`, projectRoot,
	).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: loading graph for %s: %w", projectRoot, err)
	}

	g, err := graph.Deserialize(payload)
	if err != nil {
		if errors.Is(err, graph.ErrVersionMismatch) {
			return nil, graph.ErrVersionMismatch
		}
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, err)
	}
	return g, nil
}

// Save upserts the serialized graph for projectRoot. version is stored
// alongside the payload so a fleet can audit cache format drift with a
// plain SQL query instead of decoding every row.
func (s *PostgresStore) Save(ctx context.Context, projectRoot string, g *graph.Graph) error {
	payload, err := g.Serialize()
	if err != nil {
		return fmt.Errorf("cache: serializing graph: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO testselect_graphs (root, version, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (root) DO UPDATE SET version = $2, payload = $3, updated_at = now()
	`, projectRoot, graph.Version, payload)
	if err != nil {
		return fmt.Errorf("cache: saving graph for %s: %w", projectRoot, err)
	}
	return nil
}

// Invalidate removes the stored row for projectRoot, if present.
func (s *PostgresStore) Invalidate(ctx context.Context, projectRoot string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM testselect_graphs WHERE root = $1`, projectRoot)
	if err != nil {
		return fmt.Errorf("cache: invalidating graph for %s: %w", projectRoot, err)
	}
	return nil
}
