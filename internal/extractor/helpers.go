package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

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

// extractImportSymbols reads the named bindings out of an import_clause:
// the default identifier, a { a, b } named_imports list, or a
// * as ns namespace_import.
func extractImportSymbols(source []byte, clause *sitter.Node) []string {
	var symbols []string
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "identifier":
			symbols = append(symbols, nodeContent(source, child))
		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				if name := spec.ChildByFieldName("name"); name != nil {
					symbols = append(symbols, nodeContent(source, name))
				}
			}
		case "namespace_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				if c := child.Child(j); c.Type() == "identifier" {
					symbols = append(symbols, "*")
					break
				}
			}
		}
	}
	return symbols
}

// extractExportSymbols reads the exported names out of an
// export_statement carrying a `from` clause: `export { a, b } from '...'`
// or `export * from '...'` / `export * as ns from '...'`.
func extractExportSymbols(source []byte, exportStmt *sitter.Node) []string {
	if clause := findChildByType(exportStmt, "export_clause"); clause != nil {
		var symbols []string
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				name = spec.NamedChild(0)
			}
			if name != nil {
				symbols = append(symbols, nodeContent(source, name))
			}
		}
		return symbols
	}
	if nodeContent(source, exportStmt) != "" {
		for i := 0; i < int(exportStmt.ChildCount()); i++ {
			if exportStmt.Child(i).Type() == "*" {
				return []string{"*"}
			}
		}
	}
	return nil
}
