package build

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fenwicklabs/testselect/internal/affected"
	"github.com/fenwicklabs/testselect/internal/config"
	"github.com/fenwicklabs/testselect/internal/graph"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// bumpMtime advances path's mtime past base so GetStaleFiles picks it up
// reliably regardless of filesystem timestamp resolution.
func bumpMtime(t *testing.T, path string, base time.Time) {
	t.Helper()
	next := base.Add(2 * time.Second)
	if err := os.Chtimes(path, next, next); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func mustID(t *testing.T, g *graph.Graph, path string) graph.FileID {
	t.Helper()
	id, ok := g.GetFileID(path)
	if !ok {
		t.Fatalf("file not found in graph: %s", path)
	}
	return id
}

func dependsOn(g *graph.Graph, from, to graph.FileID) bool {
	for _, dep := range g.GetDependencies(from) {
		if dep == to {
			return true
		}
	}
	return false
}

func TestBuildDirectDependency(t *testing.T) {
	root := t.TempDir()
	mathPath := filepath.Join(root, "src", "math.ts")
	specPath := filepath.Join(root, "src", "math.spec.ts")
	writeFile(t, mathPath, "export function add(a, b) { return a + b; }\n")
	writeFile(t, specPath, "import { add } from './math';\n")

	b := New(root, config.Default(), nil)
	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.FileCount() != 2 {
		t.Fatalf("got file count %d, want 2", g.FileCount())
	}

	mathID := mustID(t, g, mathPath)
	specID := mustID(t, g, specPath)
	if !dependsOn(g, specID, mathID) {
		t.Errorf("expected %s -> %s edge", specPath, mathPath)
	}
	node, ok := g.GetFileNode(specID)
	if !ok || !node.IsTest {
		t.Errorf("expected %s to be classified as a test", specPath)
	}
}

// TestBuildBarrelRedirectsTransitively covers scenario 3: a change to a
// file behind a re-export barrel must mark the test that imports through
// the barrel as affected, via a direct importer -> origin edge.
func TestBuildBarrelRedirectsTransitively(t *testing.T) {
	root := t.TempDir()
	mathPath := filepath.Join(root, "src", "math.ts")
	indexPath := filepath.Join(root, "src", "index.ts")
	consumerPath := filepath.Join(root, "src", "consumer.ts")
	specPath := filepath.Join(root, "src", "consumer.spec.ts")

	writeFile(t, mathPath, "export function add(a, b) { return a + b; }\n")
	writeFile(t, indexPath, "export { add } from './math';\n")
	writeFile(t, consumerPath, "import { add } from './index';\nexport function use() { return add(1, 2); }\n")
	writeFile(t, specPath, "import './consumer';\n")

	b := New(root, config.Default(), nil)
	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mathID := mustID(t, g, mathPath)
	indexID := mustID(t, g, indexPath)
	consumerID := mustID(t, g, consumerPath)

	if !dependsOn(g, consumerID, mathID) {
		t.Errorf("expected barrel-redirected edge %s -> %s", consumerPath, mathPath)
	}
	if dependsOn(g, consumerID, indexID) {
		t.Errorf("did not expect a direct edge to the barrel %s once redirected", indexPath)
	}

	changes := affected.ChangeSet{Modified: []string{mathPath}}
	result := affected.New(g).FindAffected(changes)
	found := false
	for _, test := range result.Tests {
		if test == specPath {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in affected tests after changing %s through the barrel, got %v", specPath, mathPath, result.Tests)
	}
}

// TestBuildBarrelFallsBackWhenExpansionMisses is a regression test: barrel
// expansion is a precision optimization, not a correctness requirement.
// Namespace imports, side-effect imports, and any import whose names
// aren't in the barrel's export table must still get the plain
// importer -> barrel edge instead of silently dropping the dependency.
func TestBuildBarrelFallsBackWhenExpansionMisses(t *testing.T) {
	root := t.TempDir()
	mathPath := filepath.Join(root, "src", "math.ts")
	indexPath := filepath.Join(root, "src", "index.ts")
	namespacePath := filepath.Join(root, "src", "namespace.ts")
	sideEffectPath := filepath.Join(root, "src", "sideeffect.ts")
	unmatchedPath := filepath.Join(root, "src", "unmatched.ts")

	writeFile(t, mathPath, "export function add(a, b) { return a + b; }\n")
	writeFile(t, indexPath, "export { add } from './math';\n")
	writeFile(t, namespacePath, "import * as api from './index';\nexport function use() { return api.add(1, 2); }\n")
	writeFile(t, sideEffectPath, "import './index';\n")
	writeFile(t, unmatchedPath, "import { subtract } from './index';\n")

	b := New(root, config.Default(), nil)
	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	indexID := mustID(t, g, indexPath)

	for _, path := range []string{namespacePath, sideEffectPath, unmatchedPath} {
		id := mustID(t, g, path)
		if !dependsOn(g, id, indexID) {
			t.Errorf("expected fallback edge %s -> %s when barrel expansion yields no origin", path, indexPath)
		}
	}
}

// TestUpdateIncrementalAddThenDelete covers scenario 5 (an incremental
// update that both adds and later removes a file) and the incremental
// equivalence property from spec §8: a sequence of incremental updates
// must converge to the same graph a full rebuild would produce.
func TestUpdateIncrementalAddThenDelete(t *testing.T) {
	root := t.TempDir()
	aPath := filepath.Join(root, "src", "a.ts")
	bPath := filepath.Join(root, "src", "b.ts")
	cPath := filepath.Join(root, "src", "c.ts")

	writeFile(t, aPath, "import './b';\n")
	writeFile(t, bPath, "export const x = 1;\n")

	cfg := config.Default()
	b := New(root, cfg, nil)
	g, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("initial Build: %v", err)
	}
	if g.FileCount() != 2 {
		t.Fatalf("got file count %d, want 2", g.FileCount())
	}

	base := time.Now()
	writeFile(t, cPath, "export const y = 2;\n")
	writeFile(t, aPath, "import './b';\nimport './c';\n")
	bumpMtime(t, aPath, base)

	touched, err := b.UpdateIncremental(context.Background(), g)
	if err != nil {
		t.Fatalf("UpdateIncremental (add): %v", err)
	}
	if touched == 0 {
		t.Fatalf("expected at least one file touched by the add")
	}

	aID := mustID(t, g, aPath)
	bID := mustID(t, g, bPath)
	cID := mustID(t, g, cPath)
	if !dependsOn(g, aID, bID) {
		t.Errorf("expected %s -> %s to survive the incremental add", aPath, bPath)
	}
	if !dependsOn(g, aID, cID) {
		t.Errorf("expected %s -> %s after the incremental add", aPath, cPath)
	}

	if err := os.Remove(cPath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	writeFile(t, aPath, "import './b';\n")
	bumpMtime(t, aPath, base.Add(4*time.Second))

	if _, err := b.UpdateIncremental(context.Background(), g); err != nil {
		t.Fatalf("UpdateIncremental (delete): %v", err)
	}

	if g.ContainsFile(cPath) {
		t.Errorf("expected %s to be removed from the graph after deletion", cPath)
	}
	aID = mustID(t, g, aPath)
	bID = mustID(t, g, bPath)
	if !dependsOn(g, aID, bID) {
		t.Errorf("expected %s -> %s to still hold after the delete", aPath, bPath)
	}
	if g.FileCount() != 2 {
		t.Fatalf("got file count %d after delete, want 2", g.FileCount())
	}

	fresh := New(root, cfg, nil)
	wantGraph, err := fresh.Build(context.Background())
	if err != nil {
		t.Fatalf("fresh Build: %v", err)
	}

	if diff := cmp.Diff(graphShape(wantGraph), graphShape(g)); diff != "" {
		t.Errorf("incrementally updated graph diverged from a fresh full build (-want +got):\n%s", diff)
	}
}

// graphShape reduces a graph to a path-keyed adjacency map so two graphs
// built through different call sequences (full vs. incremental) can be
// compared independent of FileID allocation order.
func graphShape(g *graph.Graph) map[string][]string {
	out := make(map[string][]string)
	for _, id := range g.GetAllFiles() {
		path, _ := g.GetFilePath(id)
		var deps []string
		for _, depID := range g.GetDependencies(id) {
			depPath, _ := g.GetFilePath(depID)
			deps = append(deps, depPath)
		}
		sort.Strings(deps)
		out[path] = deps
	}
	return out
}
