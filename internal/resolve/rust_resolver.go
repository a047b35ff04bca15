package resolve

import (
	"path"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// rustResolver resolves `use` paths to sibling .rs files or mod.rs,
// honoring crate:: and super:: prefixes. Grouped imports
// (`use a::{b, c}`) are reported but not individually resolved: the
// group's members name items, not necessarily distinct files.
type rustResolver struct{}

func (r *rustResolver) Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved {
	if tree == nil || tree.Root == nil {
		return nil
	}

	dir := dirOf(filePath)
	var out []Resolved
	for _, node := range tree.Root.Children {
		if node.Type != "use_declaration" {
			continue
		}
		raw := strings.TrimSpace(node.GetContent(source))
		usePath := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(raw, "pub "), "use "), ";")
		usePath = strings.TrimSpace(usePath)

		out = append(out, Resolved{
			RawImport: usePath,
			Target:    resolveRustUsePath(usePath, dir, index),
		})
	}
	return out
}

func resolveRustUsePath(usePath, dir string, index RepoIndex) string {
	if strings.Contains(usePath, "{") {
		return "" // grouped import; no single target
	}

	segments := strings.Split(usePath, "::")
	if len(segments) == 0 {
		return ""
	}

	var base string
	switch segments[0] {
	case "crate":
		base = "src"
		segments = segments[1:]
	case "super":
		base = pathDirN(dir, 1)
		segments = segments[1:]
	case "self":
		base = dir
		segments = segments[1:]
	default:
		return "" // external crate
	}

	for len(segments) > 0 && strings.Contains(segments[len(segments)-1], "super") {
		base = pathDirN(base, 1)
		segments = segments[:len(segments)-1]
	}

	rel := strings.Join(segments, "/")
	full := path.Clean(path.Join(base, rel))

	candidates := []string{full + ".rs", path.Join(full, "mod.rs")}
	if len(segments) > 0 {
		// The last segment may be an item name rather than a module;
		// also try resolving to its parent module.
		parent := path.Clean(path.Join(base, strings.Join(segments[:len(segments)-1], "/")))
		candidates = append(candidates, parent+".rs", path.Join(parent, "mod.rs"))
	}
	return firstExisting(index, candidates)
}

func pathDirN(p string, n int) string {
	for i := 0; i < n; i++ {
		p = path.Dir(p)
		if p == "." {
			p = ""
		}
	}
	return p
}
