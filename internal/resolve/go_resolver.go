package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// goResolver matches the last segment of an import path against
// directory names under the repo, per spec.md §4.8.
type goResolver struct{}

func (r *goResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var out []Resolved
	for _, node := range tree.Root.Children {
		if node.Type != "import_declaration" {
			continue
		}
		for _, importPath := range extractGoImportPaths(node, source) {
			out = append(out, Resolved{
				RawImport: importPath,
				Target:    resolveGoImportPath(importPath, index),
			})
		}
	}
	return out
}

func extractGoImportPaths(n *chunk.Node, source []byte) []string {
	var paths []string
	n.Walk(func(node *chunk.Node) bool {
		if node.Type == "interpreted_string_literal" {
			paths = append(paths, strings.Trim(node.GetContent(source), `"`))
		}
		return true
	})
	return paths
}

func resolveGoImportPath(importPath string, index RepoIndex) string {
	last := path.Base(importPath)
	if last == "" || last == "." {
		return ""
	}
	dirs := index.DirsNamed(last)
	if len(dirs) == 0 {
		return ""
	}
	return dirs[0]
}
