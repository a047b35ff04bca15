package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// javaResolver maps package-qualified class names to file paths under
// common source roots ("", "src/main/java" and "src/test/java").
type javaResolver struct{}

var javaSourceRoots = []string{"", "src/main/java", "src/test/java"}

func (r *javaResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var out []Resolved
	for _, node := range tree.Root.Children {
		if node.Type != "import_declaration" {
			continue
		}
		qualified, wildcard := extractJavaImport(node, source)
		if qualified == "" {
			continue
		}
		out = append(out, Resolved{
			RawImport: qualified,
			Target:    resolveJavaImport(qualified, wildcard, index),
		})
	}
	return out
}

func extractJavaImport(n *chunk.Node, source []byte) (qualified string, wildcard bool) {
	for _, child := range n.Children {
		if child.Type == "scoped_identifier" || child.Type == "identifier" {
			qualified = child.GetContent(source)
		}
		if child.Type == "asterisk" {
			wildcard = true
		}
	}
	return qualified, wildcard
}

func resolveJavaImport(qualified string, wildcard bool, index RepoIndex) string {
	rel := strings.ReplaceAll(qualified, ".", "/")
	if wildcard {
		// A wildcard import names a package, not a class; there is no
		// single file to resolve to.
		return ""
	}

	var candidates []string
	for _, root := range javaSourceRoots {
		candidates = append(candidates, path.Join(root, rel+".java"))
	}
	return firstExisting(index, candidates)
}
