package graph

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"
)

func TestAddFile(t *testing.T) {
	g := New()
	id := g.AddFile("/test/a.ts", false)

	if g.FileCount() != 1 {
		t.Fatalf("file count = %d, want 1", g.FileCount())
	}
	path, ok := g.GetFilePath(id)
	if !ok || path == "" {
		t.Fatalf("GetFilePath(%v) = %q, %v", id, path, ok)
	}
}

func TestAddFileDedup(t *testing.T) {
	g := New()
	a1 := g.AddFile("/test/a.ts", false)
	a2 := g.AddFile("/test/a.ts", false)
	if a1 != a2 {
		t.Fatalf("expected same id for repeated add, got %v and %v", a1, a2)
	}
	if g.FileCount() != 1 {
		t.Fatalf("file count = %d, want 1", g.FileCount())
	}
}

func TestAddDependency(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)

	g.AddDependency(a, b)

	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1", g.EdgeCount())
	}
	deps := g.GetDependencies(a)
	if len(deps) != 1 || deps[0] != b {
		t.Fatalf("GetDependencies(a) = %v, want [%v]", deps, b)
	}
	dependents := g.GetDependents(b)
	if len(dependents) != 1 || dependents[0] != a {
		t.Fatalf("GetDependents(b) = %v, want [%v]", dependents, a)
	}
}

func TestAddDependencyDedup(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)
	g.AddDependency(a, b)
	g.AddDependency(a, b)
	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1", g.EdgeCount())
	}
}

func TestTransitiveDependents(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)
	c := g.AddFile("/test/c.ts", true)

	g.AddDependency(b, a)
	g.AddDependency(c, b)

	dependents := g.GetTransitiveDependents([]FileID{a})

	for _, id := range []FileID{a, b, c} {
		if _, ok := dependents[id]; !ok {
			t.Fatalf("expected %v in transitive dependents of a, got %v", id, dependents)
		}
	}
}

func TestTransitiveDependentsReflexive(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	dependents := g.GetTransitiveDependents([]FileID{a})
	if _, ok := dependents[a]; !ok {
		t.Fatalf("expected input id to be included in its own transitive dependents")
	}
}

func TestTransitiveDependentsCycle(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)
	c := g.AddFile("/test/c.ts", true)

	g.AddDependency(a, b)
	g.AddDependency(b, c)
	g.AddDependency(c, a)

	dependents := g.GetTransitiveDependents([]FileID{a})
	if len(dependents) != 3 {
		t.Fatalf("expected cycle traversal to terminate with all 3 nodes, got %d", len(dependents))
	}
}

func TestGetTestFiles(t *testing.T) {
	g := New()
	g.AddFile("/test/a.ts", false)
	g.AddFile("/test/a.spec.ts", true)
	g.AddFile("/test/b.ts", false)
	g.AddFile("/test/b.test.ts", true)

	tests := g.GetTestFiles()
	if len(tests) != 2 {
		t.Fatalf("GetTestFiles() returned %d files, want 2", len(tests))
	}
}

func TestRemoveFile(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)
	g.AddDependency(a, b)

	g.RemoveFile(b)

	if g.ContainsFile("/test/b.ts") {
		t.Fatalf("expected b to be removed")
	}
	if g.EdgeCount() != 0 {
		t.Fatalf("expected edges incident to removed node to be dropped, got %d", g.EdgeCount())
	}
	if len(g.GetDependencies(a)) != 0 {
		t.Fatalf("expected a's dependency on removed b to be gone")
	}
}

func TestUpdateFileDropsOutgoingEdges(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", false)
	g.AddDependency(a, b)

	if _, ok := g.UpdateFile("/test/a.ts", false); !ok {
		t.Fatalf("UpdateFile on known path should succeed")
	}
	if len(g.GetDependencies(a)) != 0 {
		t.Fatalf("expected UpdateFile to drop outgoing edges")
	}
}

func TestUpdateFileUnknown(t *testing.T) {
	g := New()
	if _, ok := g.UpdateFile("/test/missing.ts", false); ok {
		t.Fatalf("UpdateFile on unknown path should fail")
	}
}

func TestSerializeDeserialize(t *testing.T) {
	g := New()
	a := g.AddFile("/test/a.ts", false)
	b := g.AddFile("/test/b.ts", true)
	g.AddDependency(a, b)

	blob, err := g.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if restored.FileCount() != 2 {
		t.Fatalf("restored file count = %d, want 2", restored.FileCount())
	}
	if restored.EdgeCount() != 1 {
		t.Fatalf("restored edge count = %d, want 1", restored.EdgeCount())
	}
	if len(restored.GetTestFiles()) != 1 {
		t.Fatalf("restored test flag not preserved")
	}
}

func TestDeserializeVersionMismatch(t *testing.T) {
	g := New()
	g.AddFile("/test/a.ts", false)
	blob, err := g.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := Deserialize(blob); err != nil {
		t.Fatalf("Deserialize of freshly serialized blob should succeed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serialized{Version: Version + 1}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Deserialize(buf.Bytes()); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("Deserialize error = %v, want ErrVersionMismatch", err)
	}
}
