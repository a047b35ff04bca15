package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// pythonResolver maps dotted module names to repo paths, honoring an
// __init__.py package fallback and an optional "src" layout root.
type pythonResolver struct{}

func (r *pythonResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	dir := dirOf(filePath)
	var out []Resolved
	for _, node := range tree.Root.Children {
		switch node.Type {
		case "import_statement":
			for _, dotted := range findDottedNames(node, source) {
				out = append(out, Resolved{
					RawImport: dotted,
					Target:    resolvePythonModule(dotted, dir, index),
				})
			}
		case "import_from_statement":
			module, relDots := extractPythonFromModule(node, source)
			raw := strings.Repeat(".", relDots) + module
			out = append(out, Resolved{
				RawImport: raw,
				Target:    resolvePythonFromModule(module, relDots, dir, index),
			})
		}
	}
	return out
}

func findDottedNames(n *chunk.Node, source []byte) []string {
	var names []string
	for _, child := range n.Children {
		switch child.Type {
		case "dotted_name":
			names = append(names, child.GetContent(source))
		case "aliased_import":
			for _, gc := range child.Children {
				if gc.Type == "dotted_name" {
					names = append(names, gc.GetContent(source))
				}
			}
		}
	}
	return names
}

// extractPythonFromModule returns the dotted module text (empty for a
// bare "from . import x") and the count of leading relative dots.
func extractPythonFromModule(n *chunk.Node, source []byte) (string, int) {
	for _, child := range n.Children {
		switch child.Type {
		case "dotted_name":
			return child.GetContent(source), 0
		case "relative_import":
			dots := 0
			module := ""
			for _, gc := range child.Children {
				if gc.Type == "import_prefix" {
					dots = len(gc.GetContent(source))
				}
				if gc.Type == "dotted_name" {
					module = gc.GetContent(source)
				}
			}
			return module, dots
		}
	}
	return "", 0
}

func resolvePythonModule(dotted, dir string, index RepoIndex) string {
	rel := strings.ReplaceAll(dotted, ".", "/")
	return firstExisting(index, pythonCandidates(rel))
}

func resolvePythonFromModule(module string, relDots int, dir string, index RepoIndex) string {
	rel := strings.ReplaceAll(module, ".", "/")

	if relDots > 0 {
		base := dir
		for i := 1; i < relDots; i++ {
			base = path.Dir(base)
		}
		full := path.Clean(path.Join(base, rel))
		return firstExisting(index, []string{
			full + ".py",
			path.Join(full, "__init__.py"),
		})
	}

	return firstExisting(index, pythonCandidates(rel))
}

func pythonCandidates(rel string) []string {
	return []string{
		rel + ".py",
		path.Join(rel, "__init__.py"),
		path.Join("src", rel+".py"),
		path.Join("src", rel, "__init__.py"),
	}
}
