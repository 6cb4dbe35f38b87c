// Package barrel detects re-export-only "barrel" index modules and
// flattens their exports to the file that originally defines each name,
// so the builder can redirect importer -> barrel -> origin edges to a
// direct importer -> origin edge.
package barrel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Origin is where an exported name actually comes from: a file path and,
// if the name was renamed along the way, its original local name.
type Origin struct {
	SourcePath   string
	OriginalName string
}

// Cache holds two maps shared across a build: canonical path -> exports,
// and canonical path -> known-non-barrel. Lookups consult the cache
// before touching the filesystem; insertion is idempotent.
type Cache struct {
	exports    map[string]map[string]Origin
	nonBarrels map[string]struct{}
}

// NewCache returns an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{
		exports:    make(map[string]map[string]Origin),
		nonBarrels: make(map[string]struct{}),
	}
}

func (c *Cache) get(path string) (map[string]Origin, bool) {
	exports, ok := c.exports[path]
	return exports, ok
}

func (c *Cache) insert(path string, exports map[string]Origin) {
	c.exports[path] = exports
}

func (c *Cache) isKnownNonBarrel(path string) bool {
	_, ok := c.nonBarrels[path]
	return ok
}

func (c *Cache) markNonBarrel(path string) {
	c.nonBarrels[path] = struct{}{}
}

func (c *Cache) isBarrel(path string) bool {
	_, ok := c.exports[path]
	return ok
}

// Analyzer checks files against the barrel definition and flattens their
// exports. Not safe for concurrent use: its Cache has no locking.
// internal/build calls it only from the serial wiring phase.
type Analyzer struct {
	cache *Cache
}

// New returns an Analyzer backed by cache. Passing a shared cache across
// analyzers lets repeated lookups for the same root short-circuit.
func New(cache *Cache) *Analyzer {
	if cache == nil {
		cache = NewCache()
	}
	return &Analyzer{cache: cache}
}

// CheckAndCache reports whether resolvedPath is a barrel, consulting and
// then populating the cache.
func (a *Analyzer) CheckAndCache(resolvedPath string) bool {
	canonical := canonicalize(resolvedPath)

	if a.cache.isBarrel(canonical) {
		return true
	}
	if a.cache.isKnownNonBarrel(canonical) {
		return false
	}

	if a.isBarrelFile(canonical) {
		exports := a.analyzeUncached(canonical, newVisitSet())
		if len(exports) > 0 {
			a.cache.insert(canonical, exports)
			return true
		}
	}

	a.cache.markNonBarrel(canonical)
	return false
}

// ResolveImports maps each of importedNames to its ultimate origin file,
// flattening through re-export chains. Names not found in the barrel's
// export table are omitted from the result.
func (a *Analyzer) ResolveImports(barrelPath string, importedNames []string) map[string]string {
	canonical := canonicalize(barrelPath)

	exports, ok := a.cache.get(canonical)
	if !ok {
		exports = a.analyzeUncached(canonical, newVisitSet())
		if len(exports) == 0 {
			return map[string]string{}
		}
		a.cache.insert(canonical, exports)
	}

	result := make(map[string]string)
	for _, name := range importedNames {
		if origin, ok := exports[name]; ok {
			result[name] = origin.SourcePath
		}
	}
	return result
}

// Analyze returns the full name->origin table for barrelPath, using the
// cache when available.
func (a *Analyzer) Analyze(barrelPath string) map[string]Origin {
	canonical := canonicalize(barrelPath)
	if cached, ok := a.cache.get(canonical); ok {
		return cached
	}
	exports := a.analyzeUncached(canonical, newVisitSet())
	if len(exports) > 0 {
		a.cache.insert(canonical, exports)
	}
	return exports
}

type visitSet map[string]struct{}

func newVisitSet() visitSet { return make(visitSet) }

// analyzeUncached flattens one barrel's exports, recursing into `export *`
// targets. visited guards against cycles between mutually re-exporting
// barrels, a case the spec requires be handled safely.
func (a *Analyzer) analyzeUncached(barrelPath string, visited visitSet) map[string]Origin {
	exports := make(map[string]Origin)

	if _, seen := visited[barrelPath]; seen {
		return exports
	}
	visited[barrelPath] = struct{}{}

	content, err := os.ReadFile(barrelPath)
	if err != nil {
		return exports
	}

	tree, root, ok := parse(barrelPath, content)
	if !ok {
		return exports
	}
	defer tree.Close()

	dir := filepath.Dir(barrelPath)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "export_statement":
			a.handleExportStatement(stmt, content, dir, barrelPath, visited, exports)
		}
	}

	return exports
}

func (a *Analyzer) handleExportStatement(stmt *sitter.Node, content []byte, dir, barrelPath string, visited visitSet, exports map[string]Origin) {
	moduleNode := findChildByType(stmt, "string")

	// export * from '...' / export * as ns from '...'
	if isStarExport(stmt) {
		if moduleNode == nil {
			return
		}
		sourcePath := resolveRelative(dir, stripQuotes(nodeContent(content, moduleNode)))
		nested := a.analyzeUncached(sourcePath, visited)
		for name, origin := range nested {
			exports[name] = origin
		}
		return
	}

	if moduleNode != nil {
		// export { a, b as c } from '...'
		sourcePath := resolveRelative(dir, stripQuotes(nodeContent(content, moduleNode)))
		for _, spec := range exportClauseNames(content, stmt) {
			var original string
			if spec.local != spec.exported {
				original = spec.local
			}
			exports[spec.exported] = Origin{SourcePath: sourcePath, OriginalName: original}
		}
		return
	}

	// export default <identifier>;  (default re-export of a local binding)
	if isDefaultExport(stmt) {
		exports["default"] = Origin{SourcePath: barrelPath}
		return
	}

	// bare `export { a, b };` with no source: the names are declared
	// locally in this file.
	if clause := findChildByType(stmt, "export_clause"); clause != nil {
		for _, spec := range exportClauseNames(content, stmt) {
			var original string
			if spec.local != spec.exported {
				original = spec.local
			}
			exports[spec.exported] = Origin{SourcePath: barrelPath, OriginalName: original}
		}
		return
	}

	// export const x = ... / export function f() {} / export class C {}:
	// the names are declared in this file.
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			exports[nodeContent(content, name)] = Origin{SourcePath: barrelPath}
		}
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			if d := decl.NamedChild(i); d.Type() == "variable_declarator" {
				if name := d.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
					exports[nodeContent(content, name)] = Origin{SourcePath: barrelPath}
				}
			}
		}
	}
}

type namedSpec struct {
	local    string
	exported string
}

func exportClauseNames(content []byte, exportStmt *sitter.Node) []namedSpec {
	clause := findChildByType(exportStmt, "export_clause")
	if clause == nil {
		return nil
	}
	var out []namedSpec
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		name := spec.ChildByFieldName("name")
		alias := spec.ChildByFieldName("alias")
		if name == nil {
			continue
		}
		local := nodeContent(content, name)
		exported := local
		if alias != nil {
			exported = nodeContent(content, alias)
		}
		out = append(out, namedSpec{local: local, exported: exported})
	}
	return out
}

func isStarExport(stmt *sitter.Node) bool {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		if stmt.Child(i).Type() == "*" {
			return true
		}
	}
	return false
}

func isDefaultExport(stmt *sitter.Node) bool {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		if stmt.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}

// isBarrelFile reports whether path's basename is a recognized index
// filename and its content is a pure barrel.
func (a *Analyzer) isBarrelFile(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "index.ts", "index.tsx", "index.js", "index.jsx":
	default:
		return false
	}
	return a.isPureBarrel(path)
}

// isPureBarrel reports whether every top-level statement is an import, a
// re-export, a bare named-export list, a default-re-export of an
// identifier, or a TS-only export assignment. Any value-producing
// declaration disqualifies the file.
func (a *Analyzer) isPureBarrel(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	tree, root, ok := parse(path, content)
	if !ok {
		return false
	}
	defer tree.Close()

	hasReexport := false

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "import_statement":
			continue
		case "export_statement":
			moduleNode := findChildByType(stmt, "string")
			switch {
			case moduleNode != nil:
				hasReexport = true
			case isDefaultExport(stmt):
				if !exportsBareIdentifier(stmt) {
					return false
				}
			case findChildByType(stmt, "export_clause") != nil:
				continue
			default:
				// export function/class/interface/type/enum/const: a
				// value-producing or type-only declaration.
				if isTypeOnlyDeclaration(stmt) {
					continue
				}
				return false
			}
		default:
			return false
		}
	}

	return hasReexport
}

func exportsBareIdentifier(exportStmt *sitter.Node) bool {
	for i := 0; i < int(exportStmt.NamedChildCount()); i++ {
		child := exportStmt.NamedChild(i)
		if child.Type() == "identifier" {
			return true
		}
	}
	return false
}

func isTypeOnlyDeclaration(exportStmt *sitter.Node) bool {
	for i := 0; i < int(exportStmt.NamedChildCount()); i++ {
		switch exportStmt.NamedChild(i).Type() {
		case "interface_declaration", "type_alias_declaration", "enum_declaration":
			return true
		}
	}
	return false
}

// FindBarrels walks dir recursively, skipping node_modules/.git/hidden
// entries, and returns every barrel file found.
func (a *Analyzer) FindBarrels(dir string) []string {
	var barrels []string
	a.findBarrelsRecursive(dir, &barrels)
	return barrels
}

func (a *Analyzer) findBarrelsRecursive(dir string, barrels *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			name := entry.Name()
			if name == "node_modules" || name == ".git" || strings.HasPrefix(name, ".") {
				continue
			}
			a.findBarrelsRecursive(path, barrels)
			continue
		}
		if a.isBarrelFile(path) {
			*barrels = append(*barrels, path)
		}
	}
}

func resolveRelative(fromDir, importPath string) string {
	if !strings.HasPrefix(importPath, ".") {
		return importPath
	}
	base := filepath.Join(fromDir, importPath)

	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		candidate := base + ext
		if fileExists(candidate) {
			return canonicalize(candidate)
		}
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		candidate := filepath.Join(base, "index"+ext)
		if fileExists(candidate) {
			return canonicalize(candidate)
		}
	}
	return canonicalize(base)
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

func parse(path string, content []byte) (*sitter.Tree, *sitter.Node, bool) {
	lang, err := languageForExt(filepath.Ext(path))
	if err != nil {
		return nil, nil, false
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, false
	}
	return tree, tree.RootNode(), true
}

func languageForExt(ext string) (*sitter.Language, error) {
	switch ext {
	case ".ts":
		return typescript.GetLanguage(), nil
	case ".tsx", ".jsx":
		return tsx.GetLanguage(), nil
	case ".js":
		return javascript.GetLanguage(), nil
	default:
		return nil, errUnsupportedExt
	}
}

var errUnsupportedExt = errors.New("barrel: unsupported extension")

func nodeContent(source []byte, node *sitter.Node) string {
	return string(source[node.StartByte():node.EndByte()])
}

func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

func stripQuotes(s string) string {
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}
