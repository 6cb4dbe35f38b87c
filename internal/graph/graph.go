// Package graph implements the in-memory file dependency graph: dense
// integer node ids, directed unweighted edges, and reverse transitive
// traversal.
package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
)

// FileID identifies a node for the lifetime of one Graph instance. Stable
// across add/update, not stable across serialize/deserialize round trips
// with a different node ordering.
type FileID uint32

// FileNode is the record stored for each file the graph knows about.
type FileNode struct {
	Path         string
	IsTest       bool
	ModifiedTime int64
	ContentHash  uint64
}

func snapshot(path string, isTest bool) FileNode {
	node := FileNode{Path: path, IsTest: isTest}
	if info, err := os.Stat(path); err == nil {
		node.ModifiedTime = info.ModTime().Unix()
	}
	if content, err := os.ReadFile(path); err == nil {
		node.ContentHash = hashBytes(content)
	}
	return node
}

func hashBytes(b []byte) uint64 {
	sum := sha256.Sum256(b)
	return binary.BigEndian.Uint64(sum[:8])
}

// Graph is a directed multigraph reduced to a simple graph: no duplicate
// edges, self-loops permitted but ignored during traversal.
type Graph struct {
	nodes    []FileNode
	alive    []bool
	outgoing []map[FileID]struct{}
	incoming []map[FileID]struct{}
	pathToID map[string]FileID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{pathToID: make(map[string]FileID)}
}

func canonicalize(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// AddFile returns the existing id for path if already present, otherwise
// creates a new node and snapshots its mtime/hash.
func (g *Graph) AddFile(path string, isTest bool) FileID {
	canonical := canonicalize(path)
	if id, ok := g.pathToID[canonical]; ok {
		return id
	}
	id := FileID(len(g.nodes))
	g.nodes = append(g.nodes, snapshot(canonical, isTest))
	g.alive = append(g.alive, true)
	g.outgoing = append(g.outgoing, make(map[FileID]struct{}))
	g.incoming = append(g.incoming, make(map[FileID]struct{}))
	g.pathToID[canonical] = id
	return id
}

// AddDependency adds the edge u->v (u imports v) if not already present.
// Both ids must refer to live nodes; violating that is a precondition
// error the caller is responsible for avoiding.
func (g *Graph) AddDependency(u, v FileID) {
	if !g.isLive(u) || !g.isLive(v) {
		return
	}
	g.outgoing[u][v] = struct{}{}
	g.incoming[v][u] = struct{}{}
}

func (g *Graph) isLive(id FileID) bool {
	return int(id) < len(g.alive) && g.alive[id]
}

// UpdateFile re-snapshots metadata for an existing path and drops all of
// its outgoing edges. Returns false if the path is unknown.
func (g *Graph) UpdateFile(path string, isTest bool) (FileID, bool) {
	canonical := canonicalize(path)
	id, ok := g.pathToID[canonical]
	if !ok || !g.isLive(id) {
		return 0, false
	}
	g.nodes[id] = snapshot(canonical, isTest)
	g.clearDependencies(id)
	return id, true
}

func (g *Graph) clearDependencies(id FileID) {
	for target := range g.outgoing[id] {
		delete(g.incoming[target], id)
	}
	g.outgoing[id] = make(map[FileID]struct{})
}

// RemoveFile removes a node, its path index entry, and every incident
// edge.
func (g *Graph) RemoveFile(id FileID) {
	if !g.isLive(id) {
		return
	}
	delete(g.pathToID, g.nodes[id].Path)
	for target := range g.outgoing[id] {
		delete(g.incoming[target], id)
	}
	for source := range g.incoming[id] {
		delete(g.outgoing[source], id)
	}
	g.outgoing[id] = nil
	g.incoming[id] = nil
	g.alive[id] = false
}

// GetFileID looks up path, then canonical(path).
func (g *Graph) GetFileID(path string) (FileID, bool) {
	if id, ok := g.pathToID[path]; ok && g.isLive(id) {
		return id, true
	}
	canonical := canonicalize(path)
	id, ok := g.pathToID[canonical]
	if !ok || !g.isLive(id) {
		return 0, false
	}
	return id, true
}

// GetFilePath returns the stored path for id.
func (g *Graph) GetFilePath(id FileID) (string, bool) {
	if !g.isLive(id) {
		return "", false
	}
	return g.nodes[id].Path, true
}

// GetFileNode returns the stored node record for id.
func (g *Graph) GetFileNode(id FileID) (FileNode, bool) {
	if !g.isLive(id) {
		return FileNode{}, false
	}
	return g.nodes[id], true
}

// GetDependents returns the direct predecessors of id (nodes that import
// id).
func (g *Graph) GetDependents(id FileID) []FileID {
	if !g.isLive(id) {
		return nil
	}
	return keys(g.incoming[id])
}

// GetDependencies returns the direct successors of id (nodes id imports).
func (g *Graph) GetDependencies(id FileID) []FileID {
	if !g.isLive(id) {
		return nil
	}
	return keys(g.outgoing[id])
}

func keys(m map[FileID]struct{}) []FileID {
	out := make([]FileID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// GetTransitiveDependents returns the set of ids reachable from any input
// id following reverse (incoming) edges, including the inputs themselves.
// Terminates on cycles via a visited set.
func (g *Graph) GetTransitiveDependents(ids []FileID) map[FileID]struct{} {
	result := make(map[FileID]struct{})
	visited := make(map[FileID]struct{})
	queue := make([]FileID, 0, len(ids))
	queue = append(queue, ids...)

	for len(queue) > 0 {
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if !g.isLive(current) {
			continue
		}
		result[current] = struct{}{}
		for dependent := range g.incoming[current] {
			if _, seen := visited[dependent]; !seen {
				queue = append(queue, dependent)
			}
		}
	}
	return result
}

// GetTestFiles returns every live node flagged as a test.
func (g *Graph) GetTestFiles() []FileID {
	var out []FileID
	for id, alive := range g.alive {
		if alive && g.nodes[id].IsTest {
			out = append(out, FileID(id))
		}
	}
	return out
}

// GetAllFiles returns every live node id.
func (g *Graph) GetAllFiles() []FileID {
	var out []FileID
	for id, alive := range g.alive {
		if alive {
			out = append(out, FileID(id))
		}
	}
	return out
}

// GetAllPaths returns the canonical path of every live node.
func (g *Graph) GetAllPaths() []string {
	out := make([]string, 0, len(g.pathToID))
	for path := range g.pathToID {
		out = append(out, path)
	}
	return out
}

// FileCount returns the number of live nodes.
func (g *Graph) FileCount() int {
	count := 0
	for _, alive := range g.alive {
		if alive {
			count++
		}
	}
	return count
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for id, alive := range g.alive {
		if alive {
			count += len(g.outgoing[id])
		}
	}
	return count
}

// ContainsFile reports whether path resolves to a live node.
func (g *Graph) ContainsFile(path string) bool {
	_, ok := g.GetFileID(path)
	return ok
}

// GetStaleFiles returns paths whose on-disk mtime differs from the stored
// snapshot, or that no longer exist.
func (g *Graph) GetStaleFiles() []string {
	var stale []string
	for path, id := range g.pathToID {
		if !g.isLive(id) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			stale = append(stale, path)
			continue
		}
		if info.ModTime().Unix() != g.nodes[id].ModifiedTime {
			stale = append(stale, path)
		}
	}
	return stale
}
