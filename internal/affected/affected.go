// Package affected computes the set of tests impacted by a set of
// changed files, and explains why: which changed file a given test
// transitively depends on.
package affected

import (
	"sort"
	"strings"

	"github.com/fenwicklabs/testselect/internal/graph"
)

// Rename pairs an old path with its new path for a git rename.
type Rename struct {
	Old string
	New string
}

// ChangeSet is the set of file changes to evaluate against the graph.
type ChangeSet struct {
	Modified []string
	Added    []string
	Deleted  []string
	Renamed  []Rename
}

// AllChanged returns every path relevant to affected-test computation:
// modified, added, and both sides of each rename. Deletions are excluded
// since a deleted file can no longer be a dependency root.
func (c ChangeSet) AllChanged() []string {
	out := make([]string, 0, len(c.Modified)+len(c.Added)+2*len(c.Renamed))
	out = append(out, c.Modified...)
	out = append(out, c.Added...)
	for _, r := range c.Renamed {
		out = append(out, r.Old, r.New)
	}
	return out
}

// IsEmpty reports whether the changeset carries no changes at all.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Modified) == 0 && len(c.Added) == 0 && len(c.Deleted) == 0 && len(c.Renamed) == 0
}

// Result is the outcome of a find-affected query: the tests and
// non-test source files reachable from the changeset.
type Result struct {
	Tests        []string
	Sources      []string
	TotalTests   int
	TotalSources int
}

// DependencyPath is an ordered chain of file paths linking a changed
// file to an affected test (or vice versa).
type DependencyPath struct {
	Chain []string
}

// String renders the chain joined by sep, e.g. " -> ".
func (p DependencyPath) String(sep string) string {
	return strings.Join(p.Chain, sep)
}

// Finder answers affected-test queries against a fixed graph snapshot.
type Finder struct {
	graph *graph.Graph
}

// New returns a Finder bound to g.
func New(g *graph.Graph) *Finder {
	return &Finder{graph: g}
}

// FindAffected returns every test and source file transitively
// dependent on any file in changes, with node_modules sources excluded
// from Sources (they are never build targets of interest).
func (f *Finder) FindAffected(changes ChangeSet) Result {
	changedIDs := f.idsFor(changes.AllChanged())
	if len(changedIDs) == 0 {
		return Result{}
	}

	affected := f.graph.GetTransitiveDependents(changedIDs)

	var tests, sources []string
	seen := make(map[string]struct{})
	for id := range affected {
		node, ok := f.graph.GetFileNode(id)
		if !ok {
			continue
		}
		if _, dup := seen[node.Path]; dup {
			continue
		}
		seen[node.Path] = struct{}{}

		if node.IsTest {
			tests = append(tests, node.Path)
			continue
		}
		if !strings.Contains(node.Path, "node_modules") {
			sources = append(sources, node.Path)
		}
	}

	sort.Strings(tests)
	sort.Strings(sources)

	testCount, sourceCount := f.GetTotals()
	return Result{Tests: tests, Sources: sources, TotalTests: testCount, TotalSources: sourceCount}
}

// FindWhy returns the shortest dependency chain from testPath down to
// whichever changed file it depends on, if any.
func (f *Finder) FindWhy(testPath string, changes ChangeSet) (DependencyPath, bool) {
	testID, ok := f.graph.GetFileID(testPath)
	if !ok {
		return DependencyPath{}, false
	}

	changedIDs := f.idSet(changes.AllChanged())
	if len(changedIDs) == 0 {
		return DependencyPath{}, false
	}

	type item struct {
		id   graph.FileID
		path []graph.FileID
	}
	queue := []item{{id: testID, path: []graph.FileID{testID}}}
	visited := map[graph.FileID]struct{}{testID: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, isChanged := changedIDs[current.id]; isChanged {
			return DependencyPath{Chain: f.pathsFor(current.path)}, true
		}

		for _, dep := range f.graph.GetDependencies(current.id) {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			next := make([]graph.FileID, len(current.path)+1)
			copy(next, current.path)
			next[len(current.path)] = dep
			queue = append(queue, item{id: dep, path: next})
		}
	}

	return DependencyPath{}, false
}

// FindAllPathsToTest returns, for every changed file that has a path to
// testPath, the shortest such dependency chain.
func (f *Finder) FindAllPathsToTest(testPath string, changes ChangeSet) []DependencyPath {
	testID, ok := f.graph.GetFileID(testPath)
	if !ok {
		return nil
	}

	changedIDs := f.idsFor(changes.AllChanged())
	if len(changedIDs) == 0 {
		return nil
	}

	var paths []DependencyPath
	for _, changedID := range changedIDs {
		if p, ok := f.findPathBetween(changedID, testID); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// findPathBetween walks forward along dependents from `from`, looking
// for `to`. This is the reverse traversal direction of FindWhy: it walks
// from a changed file up toward a test that depends on it.
func (f *Finder) findPathBetween(from, to graph.FileID) (DependencyPath, bool) {
	type item struct {
		id   graph.FileID
		path []graph.FileID
	}
	queue := []item{{id: from, path: []graph.FileID{from}}}
	visited := map[graph.FileID]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.id == to {
			return DependencyPath{Chain: f.pathsFor(current.path)}, true
		}

		for _, dependent := range f.graph.GetDependents(current.id) {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			next := make([]graph.FileID, len(current.path)+1)
			copy(next, current.path)
			next[len(current.path)] = dependent
			queue = append(queue, item{id: dependent, path: next})
		}
	}

	return DependencyPath{}, false
}

// GetTotals returns (testCount, sourceCount) across the whole graph,
// independent of any changeset.
func (f *Finder) GetTotals() (int, int) {
	all := f.graph.GetAllFiles()
	testCount := len(f.graph.GetTestFiles())
	return testCount, len(all) - testCount
}

func (f *Finder) idsFor(paths []string) []graph.FileID {
	var ids []graph.FileID
	for _, p := range paths {
		if id, ok := f.graph.GetFileID(p); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *Finder) idSet(paths []string) map[graph.FileID]struct{} {
	set := make(map[graph.FileID]struct{})
	for _, id := range f.idsFor(paths) {
		set[id] = struct{}{}
	}
	return set
}

func (f *Finder) pathsFor(ids []graph.FileID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.graph.GetFilePath(id); ok {
			out = append(out, p)
		}
	}
	return out
}
