// Package extractor parses one JS/TS source file and emits its import
// records: static imports, re-exports, dynamic import() calls, and
// require() calls.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Kind classifies how a specifier was imported.
type Kind string

const (
	KindStatic   Kind = "static"
	KindReexport Kind = "reexport"
	KindDynamic  Kind = "dynamic"
	KindRequire  Kind = "require"
)

// Import is one import record: the specifier string as written, its kind,
// and any named symbols pulled in (informational, not used by the
// resolver).
type Import struct {
	Specifier string
	Kind      Kind
	Symbols   []string
	Line      int
}

// SyntaxError wraps a parse failure. Per the error-handling policy the
// caller should log it and treat the file as a leaf node rather than
// abort the build.
type SyntaxError struct {
	Path string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("extractor: parsing %s: %v", e.Path, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func languageForExt(ext string) (*sitter.Language, error) {
	switch ext {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage(), nil
	case ".tsx", ".jsx":
		return tsx.GetLanguage(), nil
	case ".js", ".mjs", ".cjs":
		return javascript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}
}

// Extract parses source (the content of filePath, dialect chosen by its
// extension) and returns its import records in source order. A partial
// parse that still yields a root node is treated as success, matching
// tree-sitter's error-tolerant parsing; Extract only fails when no
// language is registered for the file's extension.
func Extract(filePath string, source []byte) ([]Import, error) {
	lang, err := languageForExt(filepath.Ext(filePath))
	if err != nil {
		return nil, &SyntaxError{Path: filePath, Err: err}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &SyntaxError{Path: filePath, Err: err}
	}
	defer tree.Close()

	w := &walker{source: source}
	w.walkProgram(tree.RootNode())
	return w.imports, nil
}

type walker struct {
	source  []byte
	imports []Import
}

func (w *walker) walkProgram(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.walkTopLevel(root.NamedChild(i))
	}
}

func (w *walker) walkTopLevel(node *sitter.Node) {
	switch node.Type() {
	case "import_statement":
		w.extractStaticImport(node)
	case "export_statement":
		w.extractExportStatement(node)
	case "expression_statement":
		if expr := node.NamedChild(0); expr != nil {
			w.walkExpression(expr)
		}
	case "lexical_declaration", "variable_declaration":
		w.walkVariableDeclaration(node)
	case "function_declaration", "generator_function_declaration":
		if body := node.ChildByFieldName("body"); body != nil {
			w.walkProgram(body)
		}
	}
}

func (w *walker) extractStaticImport(node *sitter.Node) {
	moduleNode := findChildByType(node, "string")
	if moduleNode == nil {
		return
	}
	var symbols []string
	if clause := findChildByType(node, "import_clause"); clause != nil {
		symbols = extractImportSymbols(w.source, clause)
	}
	w.imports = append(w.imports, Import{
		Specifier: stripQuotes(nodeContent(w.source, moduleNode)),
		Kind:      KindStatic,
		Symbols:   symbols,
		Line:      int(node.StartPoint().Row) + 1,
	})
}

// extractExportStatement handles `export ... from '...'` (named or `*`)
// re-exports. Exports that wrap a local declaration (export function,
// export class, export default <expr>, ...) contribute no import edge —
// only the `from`-clause form does.
func (w *walker) extractExportStatement(node *sitter.Node) {
	moduleNode := findChildByType(node, "string")
	if moduleNode == nil {
		// export { x }; with no source, or export default <decl>: not an
		// import, but it may still contain a require()/dynamic import in
		// an initializer (e.g. export const x = require('./x')).
		if decl := findChildByType(node, "lexical_declaration"); decl != nil {
			w.walkVariableDeclaration(decl)
		}
		return
	}

	symbols := extractExportSymbols(w.source, node)
	w.imports = append(w.imports, Import{
		Specifier: stripQuotes(nodeContent(w.source, moduleNode)),
		Kind:      KindReexport,
		Symbols:   symbols,
		Line:      int(node.StartPoint().Row) + 1,
	})
}

func (w *walker) walkVariableDeclaration(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		declarator := node.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		if value := declarator.ChildByFieldName("value"); value != nil {
			w.walkExpression(value)
		}
	}
}

// walkExpression recurses into call_expression (require(...)), the
// dynamic import() expression, spread arguments, and await expressions —
// the only shapes that can hide an import at expression depth per the
// spec's require() rule.
func (w *walker) walkExpression(node *sitter.Node) {
	switch node.Type() {
	case "call_expression":
		w.extractCallExpression(node)
	case "import_expression":
		w.extractImportExpression(node)
	case "await_expression":
		if arg := node.NamedChild(0); arg != nil {
			w.walkExpression(arg)
		}
	}
}

// extractImportExpression handles grammar variants that model
// import('...') as its own node type rather than a call_expression whose
// callee is the "import" keyword.
func (w *walker) extractImportExpression(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string" {
			w.imports = append(w.imports, Import{
				Specifier: stripQuotes(nodeContent(w.source, child)),
				Kind:      KindDynamic,
				Line:      int(node.StartPoint().Row) + 1,
			})
			return
		}
	}
}

func (w *walker) extractCallExpression(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")

	if fn != nil {
		switch fn.Type() {
		case "identifier":
			if nodeContent(w.source, fn) == "require" {
				w.extractCallStringArg(node, args, KindRequire)
			}
		case "import":
			w.extractCallStringArg(node, args, KindDynamic)
		}
	}

	if args == nil {
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "spread_element" {
			if inner := arg.NamedChild(0); inner != nil {
				w.walkExpression(inner)
			}
		}
	}
}

func (w *walker) extractCallStringArg(call, args *sitter.Node, kind Kind) {
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	first := args.NamedChild(0)
	if first.Type() != "string" {
		return
	}
	w.imports = append(w.imports, Import{
		Specifier: stripQuotes(nodeContent(w.source, first)),
		Kind:      kind,
		Line:      int(call.StartPoint().Row) + 1,
	})
}
