// Package build discovers source files, parses their imports, resolves
// each import to a file on disk, and assembles the result into a
// dependency graph. It also supports incremental re-indexing of the
// files that changed since the graph was last built.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/fenwicklabs/testselect/internal/barrel"
	"github.com/fenwicklabs/testselect/internal/config"
	"github.com/fenwicklabs/testselect/internal/extractor"
	"github.com/fenwicklabs/testselect/internal/graph"
	"github.com/fenwicklabs/testselect/internal/resolve"
)

// Builder walks a project root, parses every supported source file, and
// wires the resulting dependency graph.
type Builder struct {
	root     string
	cfg      config.Config
	resolver *resolve.Resolver
	barrels  *barrel.Analyzer
	logger   *slog.Logger
}

// New constructs a Builder rooted at root. tsconfig.json, if present at
// the root, is loaded to seed path-alias resolution; its absence is not
// an error.
func New(root string, cfg config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	resolverCfg := resolve.Config{Extensions: cfg.Extensions, Paths: map[string][]string{}}
	tsconfigPath := filepath.Join(root, "tsconfig.json")
	if loaded, err := resolve.LoadTSConfig(tsconfigPath); err == nil {
		resolverCfg.BaseURL = loaded.BaseURL
		resolverCfg.Paths = loaded.Paths
	} else {
		logger.Warn("tsconfig load failed, continuing without path aliases", "path", tsconfigPath, "error", err)
	}
	if resolverCfg.Paths == nil {
		resolverCfg.Paths = map[string][]string{}
	}

	if ws, err := config.DetectWorkspace(root); err == nil && ws != nil {
		for name, entry := range ws.AliasMap {
			resolverCfg.Paths[name] = []string{entry}
		}
		logger.Info("detected workspace", "type", ws.Type, "packageManager", ws.PackageManager, "packages", len(ws.Packages))
	}

	return &Builder{
		root:     root,
		cfg:      cfg,
		resolver: resolve.New(root, resolverCfg),
		barrels:  barrel.New(barrel.NewCache()),
		logger:   logger,
	}
}

type parseResult struct {
	path    string
	imports []extractor.Import
}

// Build performs a full crawl of the project and returns a freshly
// assembled graph.
func (b *Builder) Build(ctx context.Context) (*graph.Graph, error) {
	files, err := b.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	g := graph.New()
	for _, f := range files {
		g.AddFile(f, b.cfg.IsTest(f))
	}

	results, err := b.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	b.wire(g, results)
	return g, nil
}

// UpdateIncremental re-parses files that are stale (mtime changed since
// the last snapshot), newly discovered, or removes files that no longer
// exist on disk. It returns the number of files touched.
func (b *Builder) UpdateIncremental(ctx context.Context, g *graph.Graph) (int, error) {
	stale := g.GetStaleFiles()
	current, err := b.discoverFiles()
	if err != nil {
		return 0, fmt.Errorf("discover files: %w", err)
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, f := range current {
		currentSet[f] = struct{}{}
	}
	existingSet := make(map[string]struct{})
	for _, f := range g.GetAllPaths() {
		existingSet[f] = struct{}{}
	}

	var newFiles []string
	for _, f := range current {
		if _, ok := existingSet[f]; !ok {
			newFiles = append(newFiles, f)
		}
	}

	var deletedFiles []string
	for f := range existingSet {
		if _, ok := currentSet[f]; !ok {
			deletedFiles = append(deletedFiles, f)
		}
	}

	if len(stale) == 0 && len(newFiles) == 0 && len(deletedFiles) == 0 {
		return 0, nil
	}

	for _, path := range deletedFiles {
		if id, ok := g.GetFileID(path); ok {
			g.RemoveFile(id)
		}
	}

	for _, path := range newFiles {
		g.AddFile(path, b.cfg.IsTest(path))
	}

	var toParse []string
	for _, f := range stale {
		if _, ok := currentSet[f]; ok {
			toParse = append(toParse, f)
		}
	}
	toParse = append(toParse, newFiles...)

	for _, path := range toParse {
		if g.ContainsFile(path) {
			g.UpdateFile(path, b.cfg.IsTest(path))
		}
	}

	results, err := b.parseAll(ctx, toParse)
	if err != nil {
		return 0, err
	}
	b.wire(g, results)

	return len(toParse) + len(deletedFiles), nil
}

// parseAll parses files concurrently, skipping (and logging) any file
// that fails to parse. A parse failure is never fatal to the overall
// build: the file simply contributes no edges, same as a leaf node.
func (b *Builder) parseAll(ctx context.Context, files []string) ([]parseResult, error) {
	results := make([]parseResult, len(files))
	ok := make([]bool, len(files))

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		i, path := i, path
		group.Go(func() error {
			source, err := os.ReadFile(path)
			if err != nil {
				b.logger.Warn("failed to read file", "path", path, "error", err)
				return nil
			}
			imports, err := extractor.Extract(path, source)
			if err != nil {
				b.logger.Warn("failed to parse file", "path", path, "error", err)
				return nil
			}
			results[i] = parseResult{path: path, imports: imports}
			ok[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]parseResult, 0, len(files))
	for i, succeeded := range ok {
		if succeeded {
			out = append(out, results[i])
		}
	}
	return out, nil
}

// wire resolves each parsed import and adds the corresponding edge to g.
// When the resolved target is a pure barrel module, expansion is enabled,
// and the import names specific exports, the edge is redirected past the
// barrel to the file(s) that actually define those symbols. Expansion is
// a precision optimization, never a correctness requirement: a namespace
// import, a side-effect import, or any import ResolveImports can't map to
// a concrete origin always still gets the plain importer -> barrel edge,
// so a change to the barrel's underlying implementation is never missed.
func (b *Builder) wire(g *graph.Graph, results []parseResult) {
	for _, result := range results {
		fromID, ok := g.GetFileID(result.path)
		if !ok {
			continue
		}
		for _, imp := range result.imports {
			resolved, err := b.resolver.Resolve(result.path, imp.Specifier)
			if err != nil {
				continue
			}

			if b.cfg.ExpandBarrels && b.barrels.CheckAndCache(resolved) {
				origins := b.barrels.ResolveImports(resolved, imp.Symbols)
				if len(origins) > 0 {
					for _, target := range origins {
						if toID, ok := g.GetFileID(target); ok {
							g.AddDependency(fromID, toID)
						}
					}
					continue
				}
			}

			if toID, ok := g.GetFileID(resolved); ok {
				g.AddDependency(fromID, toID)
			}
		}
	}
}

// discoverFiles walks root honoring the layered .gitignore stack plus
// the config's own ignore/extension predicates. Hidden directories and
// node_modules trees are always skipped, mirroring the teacher's
// crawler semantics.
func (b *Builder) discoverFiles() ([]string, error) {
	var files []string
	var stack []ignoreEntry

	if gi, err := ignore.CompileIgnoreFile(filepath.Join(b.root, ".gitignore")); err == nil {
		stack = append(stack, ignoreEntry{depth: 0, matcher: gi})
	}

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, err := filepath.Rel(b.root, path)
		if err != nil {
			return nil
		}

		depth := 0
		if relPath != "." {
			depth = strings.Count(relPath, string(filepath.Separator)) + 1
		}
		for len(stack) > 0 && stack[len(stack)-1].depth >= depth && depth > 0 {
			stack = stack[:len(stack)-1]
		}

		if d.IsDir() {
			if relPath == "." {
				return nil
			}
			name := d.Name()
			if name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if name == "node_modules" {
				return filepath.SkipDir
			}
			if matchesAny(relPath, stack) {
				return filepath.SkipDir
			}
			if gi, err := ignore.CompileIgnoreFile(filepath.Join(path, ".gitignore")); err == nil {
				stack = append(stack, ignoreEntry{depth: depth, matcher: gi})
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if matchesAny(relPath, stack) {
			return nil
		}
		if !b.cfg.IsSupportedExtension(path) {
			return nil
		}
		if b.cfg.IsIgnored(relPath) {
			return nil
		}

		files = append(files, canonicalizePath(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", b.root, err)
	}
	return files, nil
}

type ignoreEntry struct {
	depth   int
	matcher *ignore.GitIgnore
}

func matchesAny(relPath string, stack []ignoreEntry) bool {
	for _, entry := range stack {
		if entry.matcher.MatchesPath(relPath) {
			return true
		}
	}
	return false
}

func canonicalizePath(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
