// Package resolve maps (importer path, specifier) pairs to canonical file
// paths, following relative, path-alias, then workspace-package
// resolution in that order.
package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when none of the three resolution stages
// produce a hit.
var ErrNotFound = errors.New("resolve: not found")

// DefaultExtensions is the candidate extension list used when a Config
// does not override it. TypeScript extensions precede JavaScript so a
// co-existing .ts and .js both resolve to the .ts.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// Config configures one Resolver instance. It is immutable after
// construction; a Resolver does no locking per query.
type Config struct {
	// BaseURL is the directory aliases resolve relative to when set;
	// falls back to Root otherwise.
	BaseURL string
	// Paths maps an alias pattern (optionally ending in "*") to an
	// ordered list of target patterns, mirroring tsconfig's
	// compilerOptions.paths.
	Paths map[string][]string
	// Extensions is the candidate extension list, in preference order.
	Extensions []string
}

// Resolver resolves import specifiers against a fixed project root and
// configuration. Safe for concurrent use: it holds no mutable state.
type Resolver struct {
	root string
	cfg  Config
}

// New returns a Resolver rooted at root. An empty cfg.Extensions falls
// back to DefaultExtensions.
func New(root string, cfg Config) *Resolver {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Paths == nil {
		cfg.Paths = map[string][]string{}
	}
	return &Resolver{root: root, cfg: cfg}
}

// Resolve maps specifier, imported from the file at fromPath, to a
// canonical file path.
func (r *Resolver) Resolve(fromPath, specifier string) (string, error) {
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		fromDir := filepath.Dir(fromPath)
		base := normalize(filepath.Join(fromDir, specifier))
		return r.resolveWithExtensions(base)
	}

	if resolved, ok := r.resolveAlias(specifier); ok {
		return resolved, nil
	}

	if resolved, ok := r.resolveWorkspacePackage(specifier); ok {
		return resolved, nil
	}

	return "", ErrNotFound
}

// resolveAlias attempts every alias pattern whose prefix matches
// specifier. An alias hit that fails extension resolution against every
// target is not a definitive miss for the caller — Resolve falls through
// to workspace-package resolution afterward.
func (r *Resolver) resolveAlias(specifier string) (string, bool) {
	for pattern, targets := range r.cfg.Paths {
		patternBase := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(specifier, patternBase) {
			continue
		}
		suffix := specifier[len(patternBase):]

		baseURL := r.cfg.BaseURL
		if baseURL == "" {
			baseURL = r.root
		}

		for _, target := range targets {
			targetBase := strings.TrimSuffix(target, "*")
			candidate := filepath.Join(baseURL, targetBase, suffix)
			if resolved, err := r.resolveWithExtensions(candidate); err == nil {
				return resolved, true
			}
		}
	}
	return "", false
}

func (r *Resolver) resolveWorkspacePackage(specifier string) (string, bool) {
	pkgName, subpath := parsePackageImport(specifier)
	pkgDir := filepath.Join(r.root, "node_modules", pkgName)

	if _, err := os.Stat(pkgDir); err != nil {
		return "", false
	}

	realPath, err := filepath.EvalSymlinks(pkgDir)
	if err != nil {
		return "", false
	}
	canonicalRoot, err := filepath.EvalSymlinks(r.root)
	if err != nil {
		canonicalRoot = r.root
	}
	if !within(realPath, canonicalRoot) {
		return "", false
	}

	var target string
	if subpath == "" {
		entry, ok := r.resolvePackageEntry(realPath)
		if !ok {
			return "", false
		}
		target = entry
	} else {
		target = filepath.Join(realPath, subpath)
	}

	resolved, err := r.resolveWithExtensions(target)
	if err != nil {
		return "", false
	}
	return resolved, true
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// parsePackageImport splits a bare specifier into a package name and an
// optional subpath. Scoped names (@scope/name) consume the first two
// segments.
func parsePackageImport(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]
		if len(parts) > 2 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name = parts[0]
	if len(parts) > 1 {
		subpath = strings.Join(parts[1:], "/")
	}
	return name, subpath
}

// resolvePackageEntry reads package.json's source/main/module/types fields
// in order, falling back to src/index then index.
func (r *Resolver) resolvePackageEntry(pkgPath string) (string, bool) {
	manifest := filepath.Join(pkgPath, "package.json")
	fields, err := readPackageEntryFields(manifest)
	if err != nil {
		return pkgPath, true
	}

	for _, field := range []string{fields.Source, fields.Main, fields.Module, fields.Types} {
		if field == "" {
			continue
		}
		candidate := filepath.Join(pkgPath, field)
		if fileExists(candidate) {
			return candidate, true
		}
		if _, err := r.resolveWithExtensions(candidate); err == nil {
			return candidate, true
		}
	}

	srcIndex := filepath.Join(pkgPath, "src", "index")
	if _, err := r.resolveWithExtensions(srcIndex); err == nil {
		return srcIndex, true
	}

	return filepath.Join(pkgPath, "index"), true
}

// resolveWithExtensions applies extension resolution to base: an exact
// file hit, then base+ext, then base/index+ext.
func (r *Resolver) resolveWithExtensions(base string) (string, error) {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return canonicalize(base), nil
	}

	for _, ext := range r.cfg.Extensions {
		candidate := base + ext
		if fileExists(candidate) {
			return canonicalize(candidate), nil
		}
	}

	for _, ext := range r.cfg.Extensions {
		candidate := filepath.Join(base, "index"+ext)
		if fileExists(candidate) {
			return canonicalize(candidate), nil
		}
	}

	return "", ErrNotFound
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func canonicalize(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}

// normalize collapses "." and ".." path components lexically, popping the
// stack on ".." only while non-empty.
func normalize(path string) string {
	isAbs := filepath.IsAbs(path)
	parts := strings.Split(path, string(filepath.Separator))
	var stack []string
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	joined := strings.Join(stack, string(filepath.Separator))
	if isAbs {
		return string(filepath.Separator) + joined
	}
	return joined
}
