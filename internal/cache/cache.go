// Package cache persists a dependency graph to disk (or, optionally, to
// Postgres) between runs so the CLI/server don't have to rebuild from
// scratch on every invocation.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fenwicklabs/testselect/internal/graph"
)

// ErrCorrupted is returned when the cache file exists but cannot be
// decoded at all (distinct from a version mismatch, which decodes fine
// but carries an old format tag).
var ErrCorrupted = errors.New("cache: corrupted cache file")

const (
	defaultCacheDir  = ".testselect"
	defaultCacheFile = "cache.bin"
)

// Manager loads and saves a graph snapshot under <root>/<cacheDir>.
type Manager struct {
	cacheDir string
}

// New returns a Manager rooted under projectRoot. dir and file override
// the default cache directory/filename when non-empty.
func New(projectRoot, dir, file string) *Manager {
	if dir == "" {
		dir = defaultCacheDir
	}
	if file == "" {
		file = defaultCacheFile
	}
	return &Manager{cacheDir: filepath.Join(projectRoot, dir, file)}
}

func (m *Manager) path() string { return m.cacheDir }

// Load reads and decodes the cached graph. A missing cache file is not
// an error: it returns (nil, nil).
func (m *Manager) Load() (*graph.Graph, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: reading %s: %w", m.path(), err)
	}

	g, err := graph.Deserialize(data)
	if err != nil {
		if errors.Is(err, graph.ErrVersionMismatch) {
			return nil, graph.ErrVersionMismatch
		}
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, err)
	}
	return g, nil
}

// Save serializes g and writes it to the cache path, creating the cache
// directory if necessary.
func (m *Manager) Save(g *graph.Graph) error {
	if err := os.MkdirAll(filepath.Dir(m.path()), 0o755); err != nil {
		return fmt.Errorf("cache: creating cache dir: %w", err)
	}
	data, err := g.Serialize()
	if err != nil {
		return fmt.Errorf("cache: serializing graph: %w", err)
	}
	if err := os.WriteFile(m.path(), data, 0o644); err != nil {
		return fmt.Errorf("cache: writing %s: %w", m.path(), err)
	}
	return nil
}

// Invalidate removes the cache file, if present.
func (m *Manager) Invalidate() error {
	err := os.Remove(m.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: removing %s: %w", m.path(), err)
	}
	return nil
}

// Exists reports whether a cache file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path())
	return err == nil
}
