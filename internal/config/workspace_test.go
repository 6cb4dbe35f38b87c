package config

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
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

func packageNames(pkgs []PackageInfo) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}

func TestDetectWorkspacePnpmMonorepo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pnpm-workspace.yaml"), "packages:\n  - packages/*\n")
	writeFile(t, filepath.Join(dir, "pnpm-lock.yaml"), "")
	writeFile(t, filepath.Join(dir, "packages/core/package.json"), `{"name":"@test/core","version":"1.0.0"}`)
	writeFile(t, filepath.Join(dir, "packages/core/src/index.ts"), "export const x = 1;")
	writeFile(t, filepath.Join(dir, "packages/utils/package.json"), `{"name":"@test/utils","version":"1.0.0"}`)
	writeFile(t, filepath.Join(dir, "packages/utils/src/index.ts"), "export const y = 1;")

	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil {
		t.Fatal("expected non-nil workspace info")
	}
	if info.Type != "monorepo" {
		t.Errorf("expected type monorepo, got %q", info.Type)
	}
	if info.PackageManager != "pnpm" {
		t.Errorf("expected pnpm, got %q", info.PackageManager)
	}
	if len(info.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(info.Packages))
	}

	names := packageNames(info.Packages)
	sort.Strings(names)
	if names[0] != "@test/core" || names[1] != "@test/utils" {
		t.Errorf("unexpected package names: %v", names)
	}
	if _, ok := info.AliasMap["@test/core"]; !ok {
		t.Error("alias map missing @test/core")
	}
	if _, ok := info.AliasMap["@test/utils"]; !ok {
		t.Error("alias map missing @test/utils")
	}
}

func TestDetectWorkspacePackageJSONWorkspaces(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"name":"root","workspaces":["apps/*"]}`)
	writeFile(t, filepath.Join(dir, "yarn.lock"), "")
	writeFile(t, filepath.Join(dir, "apps/web/package.json"), `{"name":"@test/web","version":"1.0.0"}`)
	writeFile(t, filepath.Join(dir, "apps/web/index.js"), "module.exports = {};")

	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.PackageManager != "yarn" {
		t.Errorf("expected yarn, got %q", info.PackageManager)
	}
	if len(info.Packages) != 1 || info.Packages[0].Name != "@test/web" {
		t.Fatalf("unexpected packages: %+v", info.Packages)
	}
	if info.Packages[0].EntryPoint != "index.js" {
		t.Errorf("expected entry point index.js, got %q", info.Packages[0].EntryPoint)
	}
}

func TestDetectWorkspaceLernaJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lerna.json"), `{"packages":["libs/*"]}`)
	writeFile(t, filepath.Join(dir, "package-lock.json"), "")
	writeFile(t, filepath.Join(dir, "libs/shared/package.json"), `{"name":"@test/shared","version":"2.0.0"}`)
	writeFile(t, filepath.Join(dir, "libs/shared/src/index.tsx"), "export {}")

	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.PackageManager != "npm" {
		t.Errorf("expected npm, got %q", info.PackageManager)
	}
	if len(info.Packages) != 1 || info.Packages[0].Name != "@test/shared" {
		t.Fatalf("unexpected packages: %+v", info.Packages)
	}
}

func TestDetectWorkspaceStandalone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), `{"name":"solo-app","version":"1.0.0","main":"lib/index.js"}`)

	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Type != "standalone" {
		t.Errorf("expected standalone, got %q", info.Type)
	}
	if len(info.Packages) != 1 || info.Packages[0].Name != "solo-app" {
		t.Fatalf("unexpected packages: %+v", info.Packages)
	}
	if info.Packages[0].EntryPoint != "lib/index.js" {
		t.Errorf("expected entry point lib/index.js, got %q", info.Packages[0].EntryPoint)
	}
}

func TestDetectWorkspaceNoProjectReturnsNil(t *testing.T) {
	dir := t.TempDir()
	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil info for non-JS directory, got %+v", info)
	}
}

func TestDetectWorkspaceGlobNegation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pnpm-workspace.yaml"), "packages:\n  - packages/*\n  - \"!packages/excluded\"\n")
	writeFile(t, filepath.Join(dir, "packages/kept/package.json"), `{"name":"@test/kept"}`)
	writeFile(t, filepath.Join(dir, "packages/excluded/package.json"), `{"name":"@test/excluded"}`)

	info, err := DetectWorkspace(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := packageNames(info.Packages)
	for _, n := range names {
		if n == "@test/excluded" {
			t.Errorf("negated package should have been excluded, got packages %v", names)
		}
	}
	found := false
	for _, n := range names {
		if n == "@test/kept" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected @test/kept in packages, got %v", names)
	}
}
