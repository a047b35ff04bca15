// Package resolve implements the per-language import resolvers of
// spec.md §4.8: given a parsed file, extract its textual imports and
// resolve each to a repo-relative path (a file; for Go, a directory),
// the first existing candidate winning.
package resolve

import "github.com/lyy0709/contextweaver/internal/chunk"

// RepoIndex answers existence questions about the scanned repository,
// so a resolver never has to touch the filesystem directly.
type RepoIndex interface {
	// FileExists reports whether relativePath is a known file.
	FileExists(relativePath string) bool

	// DirsNamed returns every repo-relative directory whose base name
	// equals name, used by the Go resolver's directory-name matching.
	DirsNamed(name string) []string
}

// Resolved is one import statement resolved to zero or one repo
// path (the first existing candidate, or none if the import is
// external or unresolvable).
type Resolved struct {
	RawImport string // the literal import text, for diagnostics
	Target    string // repo-relative path, empty if unresolved
}

// Resolver extracts and resolves the imports of one language's files.
// Implementations are stateless strategy records, keyed by language in
// a Registry, per the tagged-variant pattern used by chunk.LanguageConfig.
type Resolver interface {
	// Resolve returns one Resolved entry per import statement found in
	// tree, in document order. filePath is the importing file's own
	// repo-relative path, used to resolve relative imports.
	Resolve(tree *chunk.Tree, source []byte, filePath string, index RepoIndex) []Resolved
}

// Registry maps language name to its Resolver.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry builds a registry covering all nine languages named in
// spec.md §4.2/§4.8.
func NewRegistry() *Registry {
	js := &jsResolver{}
	cLike := &cResolver{}

	return &Registry{resolvers: map[string]Resolver{
		"go":         &goResolver{},
		"typescript": js,
		"tsx":        js,
		"javascript": js,
		"jsx":        js,
		"python":     &pythonResolver{},
		"java":       &javaResolver{},
		"rust":       &rustResolver{},
		"c":          cLike,
		"cpp":        cLike,
		"csharp":     &csharpResolver{},
	}}
}

// Get returns the resolver for a language, if one is registered.
func (r *Registry) Get(language string) (Resolver, bool) {
	res, ok := r.resolvers[language]
	return res, ok
}

// Resolve dispatches to the language's resolver, returning nil for
// unsupported languages rather than an error: not every scanned file
// needs import resolution.
func (r *Registry) Resolve(tree *chunk.Tree, source []byte, filePath, language string, index RepoIndex) []Resolved {
	res, ok := r.resolvers[language]
	if !ok {
		return nil
	}
	return res.Resolve(tree, source, filePath, index)
}
