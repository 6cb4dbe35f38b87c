package cache

import (
	"context"

	"github.com/fenwicklabs/testselect/internal/graph"
)

// GraphStore is the common persistence interface for a dependency graph.
// Manager (one binary cache file per project root) and PostgresStore (one
// shared table across every root, for a CI fleet of ephemeral runners)
// both implement it, so callers pick a backend without branching on type.
type GraphStore interface {
	Load(ctx context.Context, projectRoot string) (*graph.Graph, error)
	Save(ctx context.Context, projectRoot string, g *graph.Graph) error
	Invalidate(ctx context.Context, projectRoot string) error
}

// AsGraphStore adapts m, whose methods are already bound to a single
// project root, to the ctx/root-taking GraphStore interface.
func (m *Manager) AsGraphStore() GraphStore {
	return managerStore{m}
}

type managerStore struct{ m *Manager }

func (s managerStore) Load(ctx context.Context, projectRoot string) (*graph.Graph, error) {
	return s.m.Load()
}

func (s managerStore) Save(ctx context.Context, projectRoot string, g *graph.Graph) error {
	return s.m.Save(g)
}

func (s managerStore) Invalidate(ctx context.Context, projectRoot string) error {
	return s.m.Invalidate()
}

var _ GraphStore = managerStore{}
var _ GraphStore = (*PostgresStore)(nil)
