package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestResolveRelativeImport(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "foo.ts"), "")
	writeFile(t, filepath.Join(src, "bar.ts"), "")

	r := New(root, Config{})
	got, err := r.Resolve(filepath.Join(src, "bar.ts"), "./foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "foo.ts" {
		t.Fatalf("got %q, want a path ending in foo.ts", got)
	}
}

func TestResolveIndexFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "utils", "index.ts"), "")
	writeFile(t, filepath.Join(src, "main.ts"), "")

	r := New(root, Config{})
	got, err := r.Resolve(filepath.Join(src, "main.ts"), "./utils")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "index.ts" {
		t.Fatalf("got %q, want a path ending in index.ts", got)
	}
}

func TestResolveParentDirImport(t *testing.T) {
	root := t.TempDir()
	component := filepath.Join(root, "src", "Component")
	tests := filepath.Join(component, "__tests__")
	writeFile(t, filepath.Join(component, "index.tsx"), "export const Component = () => {};")
	writeFile(t, filepath.Join(tests, "index.spec.tsx"), "import { Component } from '..';")

	r := New(root, Config{})
	got, err := r.Resolve(filepath.Join(tests, "index.spec.tsx"), "..")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "index.tsx" {
		t.Fatalf("got %q, want a path ending in index.tsx", got)
	}
}

func TestResolvePathAlias(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "lib", "x.ts"), "")
	writeFile(t, filepath.Join(root, "a.ts"), "")

	r := New(root, Config{
		Paths: map[string][]string{
			"@lib/*": {"src/lib/*"},
		},
	})
	got, err := r.Resolve(filepath.Join(root, "a.ts"), "@lib/x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "x.ts" {
		t.Fatalf("got %q, want a path ending in x.ts", got)
	}
}

func TestResolveAliasFallthroughToWorkspacePackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "@lib", "x", "index.ts"), "")
	writeFile(t, filepath.Join(root, "node_modules", "@lib", "x", "package.json"), `{"main":"index.ts"}`)
	writeFile(t, filepath.Join(root, "a.ts"), "")

	// The alias targets a directory that doesn't exist, so alias
	// resolution must fail and fall through to workspace-package
	// resolution rather than returning not-found outright.
	r := New(root, Config{
		Paths: map[string][]string{
			"@lib/*": {"does-not-exist/*"},
		},
	})
	got, err := r.Resolve(filepath.Join(root, "a.ts"), "@lib/x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "index.ts" {
		t.Fatalf("got %q, want workspace package entry index.ts", got)
	}
}

func TestResolveWorkspacePackageEntry(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "node_modules", "some-pkg")
	writeFile(t, filepath.Join(pkg, "lib", "main.js"), "")
	writeFile(t, filepath.Join(pkg, "package.json"), `{"main":"lib/main.js"}`)
	writeFile(t, filepath.Join(root, "a.ts"), "")

	r := New(root, Config{})
	got, err := r.Resolve(filepath.Join(root, "a.ts"), "some-pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "main.js" {
		t.Fatalf("got %q, want lib/main.js", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.ts"), "")

	r := New(root, Config{})
	if _, err := r.Resolve(filepath.Join(root, "a.ts"), "totally-missing-package"); err != ErrNotFound {
		t.Fatalf("Resolve error = %v, want ErrNotFound", err)
	}
}

func TestLoadTSConfigMissingIsNotError(t *testing.T) {
	cfg, err := LoadTSConfig(filepath.Join(t.TempDir(), "tsconfig.json"))
	if err != nil {
		t.Fatalf("missing tsconfig should not error: %v", err)
	}
	if len(cfg.Paths) != 0 {
		t.Fatalf("expected empty paths for missing tsconfig")
	}
}

func TestLoadTSConfigParsesPaths(t *testing.T) {
	root := t.TempDir()
	tsconfigPath := filepath.Join(root, "tsconfig.json")
	writeFile(t, tsconfigPath, `{
		// comment
		"compilerOptions": {
			"baseUrl": ".",
			"paths": { "@lib/*": ["src/lib/*"] }
		}
	}`)

	cfg, err := LoadTSConfig(tsconfigPath)
	if err != nil {
		t.Fatalf("LoadTSConfig: %v", err)
	}
	if targets := cfg.Paths["@lib/*"]; len(targets) != 1 || targets[0] != "src/lib/*" {
		t.Fatalf("got paths %v", cfg.Paths)
	}
}
