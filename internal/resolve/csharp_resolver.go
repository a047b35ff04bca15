package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// csharpResolver maps namespace-qualified type names to file paths
// under common source roots.
type csharpResolver struct{}

var csharpSourceRoots = []string{"", "src"}

func (r *csharpResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var out []Resolved

	var walk func(n *chunk.Node)
	walk = func(n *chunk.Node) {
		for _, child := range n.Children {
			if child.Type == "using_directive" {
				if qualified := extractCSharpUsing(child, source); qualified != "" {
					out = append(out, Resolved{
						RawImport: qualified,
						Target:    resolveCSharpUsing(qualified, index),
					})
				}
				continue
			}
			walk(child)
		}
	}
	walk(tree.Root)

	return out
}

func extractCSharpUsing(n *chunk.Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "qualified_name" || child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func resolveCSharpUsing(qualified string, index RepoIndex) string {
	rel := strings.ReplaceAll(qualified, ".", "/")
	var candidates []string
	for _, root := range csharpSourceRoots {
		candidates = append(candidates, path.Join(root, rel+".cs"))
	}
	return firstExisting(index, candidates)
}
