package resolve

import (
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// jsExtensions is probed, in order, against a relative specifier that
// has no extension of its own.
var jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// jsResolver handles JavaScript, TypeScript, JSX and TSX alike: all
// four grammars share the same import_statement shape. Bare
// specifiers (no leading "." or "/") name external packages and are
// left unresolved.
type jsResolver struct{}

func (r *jsResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	dir := dirOf(filePath)
	var out []Resolved
	for _, node := range tree.Root.Children {
		if node.Type != "import_statement" && node.Type != "export_statement" {
			continue
		}
		spec, ok := extractJSImportSpecifier(node, source)
		if !ok {
			continue
		}
		out = append(out, Resolved{
			RawImport: spec,
			Target:    resolveJSSpecifier(spec, dir, index),
		})
	}
	return out
}

func extractJSImportSpecifier(n *chunk.Node, source []byte) (string, bool) {
	for _, child := range n.Children {
		if child.Type == "string" {
			return strings.Trim(child.GetContent(source), `"'`), true
		}
	}
	return "", false
}

func resolveJSSpecifier(spec, dir string, index RepoIndex) string {
	if !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/") {
		return "" // bare specifier, external module
	}

	base := joinRel(dir, spec)
	candidates := []string{base}
	for _, ext := range jsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range jsExtensions {
		candidates = append(candidates, joinRel(base, "index"+ext))
	}
	return firstExisting(index, candidates)
}
