package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// PackageInfo describes one package discovered in a workspace.
type PackageInfo struct {
	Name       string
	Path       string
	Version    string
	EntryPoint string
}

// WorkspaceInfo is the result of detecting a JS/TS project's shape:
// a single standalone package, or a pnpm/yarn/npm/lerna monorepo.
type WorkspaceInfo struct {
	Type           string
	PackageManager string
	Packages       []PackageInfo
	AliasMap       map[string]string
	TSConfigPaths  map[string]string
}

// DetectWorkspace inspects root for workspace config files and
// package.json, returning nil if root carries no JS/TS project
// indicators at all.
func DetectWorkspace(root string) (*WorkspaceInfo, error) {
	globs, err := detectWorkspaceGlobs(root)
	if err != nil {
		return nil, fmt.Errorf("detecting workspace: %w", err)
	}

	hasPackageJSON := fileExists(filepath.Join(root, "package.json"))
	if len(globs) == 0 && !hasPackageJSON {
		return nil, nil
	}

	info := &WorkspaceInfo{
		AliasMap:      make(map[string]string),
		TSConfigPaths: make(map[string]string),
	}

	if len(globs) == 0 {
		info.Type = "standalone"
		info.PackageManager = detectPackageManager(root)
		pkg, err := readPackageInfo(root, root)
		if err != nil {
			pkg = PackageInfo{Name: filepath.Base(root), Path: "."}
		}
		info.Packages = []PackageInfo{pkg}
	} else {
		info.Type = "monorepo"
		info.PackageManager = detectPackageManager(root)
		packages, err := discoverPackages(root, globs)
		if err != nil {
			return nil, fmt.Errorf("discovering packages: %w", err)
		}
		info.Packages = packages
	}

	for i := range info.Packages {
		pkg := &info.Packages[i]
		if pkg.Name == "" {
			continue
		}
		entry := findEntryPoint(filepath.Join(root, pkg.Path))
		pkg.EntryPoint = entry
		if entry != "" {
			info.AliasMap[pkg.Name] = filepath.Join(pkg.Path, entry)
		}
	}

	return info, nil
}

func detectWorkspaceGlobs(root string) ([]string, error) {
	if pnpmPath := filepath.Join(root, "pnpm-workspace.yaml"); fileExists(pnpmPath) {
		globs, err := parsePnpmWorkspace(pnpmPath)
		if err != nil {
			return nil, fmt.Errorf("parsing pnpm-workspace.yaml: %w", err)
		}
		if len(globs) > 0 {
			return globs, nil
		}
	}

	if pkgPath := filepath.Join(root, "package.json"); fileExists(pkgPath) {
		globs, err := parsePackageJSONWorkspaces(pkgPath)
		if err != nil {
			return nil, fmt.Errorf("parsing package.json workspaces: %w", err)
		}
		if len(globs) > 0 {
			return globs, nil
		}
	}

	if lernaPath := filepath.Join(root, "lerna.json"); fileExists(lernaPath) {
		globs, err := parseLernaJSON(lernaPath)
		if err != nil {
			return nil, fmt.Errorf("parsing lerna.json: %w", err)
		}
		if len(globs) > 0 {
			return globs, nil
		}
	}

	return nil, nil
}

// parsePnpmWorkspace parses the `packages:` list out of a
// pnpm-workspace.yaml using a real YAML decoder.
func parsePnpmWorkspace(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return doc.Packages, nil
}

func parsePackageJSONWorkspaces(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	wsRaw, ok := raw["workspaces"]
	if !ok {
		return nil, nil
	}

	var globs []string
	if err := json.Unmarshal(wsRaw, &globs); err == nil {
		return globs, nil
	}

	var wsObj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(wsRaw, &wsObj); err == nil {
		return wsObj.Packages, nil
	}
	return nil, nil
}

func parseLernaJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var lerna struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &lerna); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return lerna.Packages, nil
}

func detectPackageManager(root string) string {
	switch {
	case fileExists(filepath.Join(root, "pnpm-lock.yaml")):
		return "pnpm"
	case fileExists(filepath.Join(root, "yarn.lock")):
		return "yarn"
	case fileExists(filepath.Join(root, "package-lock.json")):
		return "npm"
	default:
		return ""
	}
}

func discoverPackages(root string, globs []string) ([]PackageInfo, error) {
	var packages []PackageInfo
	seen := make(map[string]bool)
	var negations []string
	for _, g := range globs {
		if neg, ok := strings.CutPrefix(g, "!"); ok {
			negations = append(negations, neg)
		}
	}

	for _, pattern := range globs {
		if strings.HasPrefix(pattern, "!") {
			continue
		}

		matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("expanding glob %q: %w", pattern, err)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				continue
			}
			relPath, err := filepath.Rel(root, match)
			if err != nil || seen[relPath] {
				continue
			}
			if isNegated(relPath, negations) {
				continue
			}

			pkg, err := readPackageInfo(match, root)
			if err != nil {
				continue
			}
			seen[relPath] = true
			packages = append(packages, pkg)
		}
	}

	return packages, nil
}

func isNegated(relPath string, negations []string) bool {
	for _, neg := range negations {
		if ok, _ := doublestar.Match(neg, filepath.ToSlash(relPath)); ok {
			return true
		}
	}
	return false
}

func readPackageInfo(pkgDir, root string) (PackageInfo, error) {
	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return PackageInfo{}, fmt.Errorf("reading package.json: %w", err)
	}

	var pkg struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return PackageInfo{}, fmt.Errorf("parsing package.json: %w", err)
	}

	relPath, err := filepath.Rel(root, pkgDir)
	if err != nil {
		relPath = pkgDir
	}
	return PackageInfo{Name: pkg.Name, Path: relPath, Version: pkg.Version}, nil
}

func findEntryPoint(pkgDir string) string {
	candidates := []string{
		"src/index.ts", "src/index.tsx", "src/index.js", "src/index.jsx",
		"index.ts", "index.tsx", "index.js", "index.jsx",
	}
	for _, c := range candidates {
		if fileExists(filepath.Join(pkgDir, c)) {
			return c
		}
	}

	data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main   string `json:"main"`
		Source string `json:"source"`
		Module string `json:"module"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	switch {
	case pkg.Source != "":
		return pkg.Source
	case pkg.Module != "":
		return pkg.Module
	default:
		return pkg.Main
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
