package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// cIncludeRoots are probed in addition to the including file's own
// directory. Real C/C++ builds take include roots from compiler
// flags; absent that configuration here, this fixed list covers the
// conventional layouts ("include/foo.h", "src/foo.h", repo root).
var cIncludeRoots = []string{"include", "src", ""}

// cResolver handles both C and C++: #include "..." is probed relative
// to the current file and to cIncludeRoots. #include <...> (a system
// or library header) is left unresolved.
type cResolver struct{}

func (r *cResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	dir := dirOf(filePath)
	var out []Resolved

	var walk func(n *chunk.Node)
	walk = func(n *chunk.Node) {
		for _, child := range n.Children {
			if child.Type == "preproc_include" {
				if header, quoted, ok := extractCInclude(child, source); ok {
					raw := header
					var target string
					if quoted {
						target = resolveCInclude(header, dir, index)
					}
					out = append(out, Resolved{RawImport: raw, Target: target})
				}
				continue
			}
			walk(child)
		}
	}
	walk(tree.Root)

	return out
}

func extractCInclude(n *chunk.Node, source []byte) (header string, quoted bool, ok bool) {
	for _, child := range n.Children {
		switch child.Type {
		case "string_literal":
			return strings.Trim(child.GetContent(source), `"`), true, true
		case "system_lib_string":
			return child.GetContent(source), false, true
		}
	}
	return "", false, false
}

func resolveCInclude(header, dir string, index RepoIndex) string {
	candidates := []string{joinRel(dir, header)}
	for _, root := range cIncludeRoots {
		candidates = append(candidates, path.Join(root, header))
	}
	return firstExisting(index, candidates)
}
