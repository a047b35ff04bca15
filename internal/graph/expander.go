package graph

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/lyy0709/contextweaver/internal/chunk"
	"github.com/lyy0709/contextweaver/internal/resolve"
	"github.com/lyy0709/contextweaver/internal/search"
	"github.com/lyy0709/contextweaver/internal/store"
)

// Expander runs the three expansion phases of spec.md §4.10 against a
// seed set. No teacher analogue exists for any of the three phases;
// the control flow (cache imports per file, resolve via
// internal/resolve, decay scores from the nearest seed) is new,
// grounded directly on spec.md's literal algorithm.
type Expander struct {
	Vectors   *store.VectorChunkStore
	Metadata  store.MetadataStore
	Resolvers *resolve.Registry
	Parsers   *chunk.ParserPool
	RepoRoot  string
	Config    Config

	mu          sync.Mutex
	importCache map[string][]resolve.Resolved
}

// NewExpander constructs an Expander. Metadata may be nil when E3
// import expansion is disabled (ImportFilesPerSeed == 0), since it is
// only consulted to build the RepoIndex resolvers need.
func NewExpander(vectors *store.VectorChunkStore, metadata store.MetadataStore, resolvers *resolve.Registry, parsers *chunk.ParserPool, repoRoot string, cfg Config) *Expander {
	return &Expander{
		Vectors:     vectors,
		Metadata:    metadata,
		Resolvers:   resolvers,
		Parsers:     parsers,
		RepoRoot:    repoRoot,
		Config:      cfg,
		importCache: make(map[string][]resolve.Resolved),
	}
}

// Expand runs E1/E2/E3 over seeds and returns every admitted chunk not
// already present in seeds, de-duplicated across phases (first write
// wins, since phases run in priority order E1 then E2 then E3).
func (e *Expander) Expand(ctx context.Context, seeds []search.Seed) ([]Expanded, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	seedIDs := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedIDs[s.ChunkID] = struct{}{}
	}

	admitted := make(map[string]Expanded)

	for _, s := range seeds {
		for _, x := range e.neighbors(s) {
			admitOnce(admitted, seedIDs, x)
		}
	}
	for _, s := range seeds {
		for _, x := range e.breadcrumbSiblings(s) {
			admitOnce(admitted, seedIDs, x)
		}
	}
	if e.Config.ImportFilesPerSeed > 0 {
		for _, s := range seeds {
			imports, err := e.importTargets(ctx, s)
			if err != nil {
				continue // best-effort: an unparsable file skips E3 for that seed, not the whole pack
			}
			for _, x := range e.importChunks(ctx, s, imports) {
				admitOnce(admitted, seedIDs, x)
			}
		}
	}

	out := make([]Expanded, 0, len(admitted))
	for _, x := range admitted {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

func admitOnce(admitted map[string]Expanded, seedIDs map[string]struct{}, x Expanded) {
	if _, isSeed := seedIDs[x.ChunkID]; isSeed {
		return
	}
	if _, already := admitted[x.ChunkID]; already {
		return
	}
	admitted[x.ChunkID] = x
}

// neighbors implements E1: up to neighbor_hops chunks before and after
// by chunk_index in the same file, score decayed by
// neighbor_decay^distance.
func (e *Expander) neighbors(s search.Seed) []Expanded {
	if e.Config.NeighborHops <= 0 {
		return nil
	}
	byIndex := make(map[int]*chunk.Chunk)
	for _, c := range e.Vectors.ChunksForFile(s.RelativePath) {
		byIndex[c.ChunkIndex] = c
	}

	var out []Expanded
	for d := 1; d <= e.Config.NeighborHops; d++ {
		for _, idx := range []int{s.ChunkIndex - d, s.ChunkIndex + d} {
			c, ok := byIndex[idx]
			if !ok {
				continue
			}
			out = append(out, Expanded{
				ChunkID:      c.ChunkID,
				RelativePath: c.RelativePath,
				ChunkIndex:   c.ChunkIndex,
				Score:        s.Score * pow(e.Config.NeighborDecay, float64(d)),
				Phase:        PhaseNeighbor,
				FromSeed:     s.ChunkID,
			})
		}
	}
	return out
}

// breadcrumbSiblings implements E2: other chunks in the same file
// sharing a breadcrumb prefix of depth >= 1, closest chunk_index
// preferred, capped at breadcrumb_expand_limit.
func (e *Expander) breadcrumbSiblings(s search.Seed) []Expanded {
	if e.Config.BreadcrumbExpandLimit <= 0 {
		return nil
	}

	fileChunks := e.Vectors.ChunksForFile(s.RelativePath)
	var seedChunk *chunk.Chunk
	for _, c := range fileChunks {
		if c.ChunkID == s.ChunkID {
			seedChunk = c
			break
		}
	}
	if seedChunk == nil || strings.TrimSpace(seedChunk.Breadcrumb) == "" {
		return nil
	}
	seedPrefix := breadcrumbParts(seedChunk.Breadcrumb)

	type candidate struct {
		c    *chunk.Chunk
		dist int
	}
	var candidates []candidate
	for _, c := range fileChunks {
		if c.ChunkID == s.ChunkID || strings.TrimSpace(c.Breadcrumb) == "" {
			continue
		}
		if sharesPrefix(seedPrefix, breadcrumbParts(c.Breadcrumb)) {
			dist := c.ChunkIndex - s.ChunkIndex
			if dist < 0 {
				dist = -dist
			}
			candidates = append(candidates, candidate{c: c, dist: dist})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].c.ChunkIndex < candidates[j].c.ChunkIndex
	})

	limit := e.Config.BreadcrumbExpandLimit
	if len(candidates) < limit {
		limit = len(candidates)
	}

	out := make([]Expanded, 0, limit)
	for _, cand := range candidates[:limit] {
		out = append(out, Expanded{
			ChunkID:      cand.c.ChunkID,
			RelativePath: cand.c.RelativePath,
			ChunkIndex:   cand.c.ChunkIndex,
			Score:        s.Score * e.Config.NeighborDecay, // fixed single-hop decay per spec.md §4.10
			Phase:        PhaseBreadcrumb,
			FromSeed:     s.ChunkID,
		})
	}
	return out
}

// breadcrumbParts splits a "ClassA > methodB" breadcrumb into its
// named-scope segments.
func breadcrumbParts(breadcrumb string) []string {
	parts := strings.Split(breadcrumb, ">")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sharesPrefix(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return a[0] == b[0]
}

// importTargets resolves the import statements of a seed's owning
// file, caching the parse+resolve result per file for the lifetime of
// the Expander.
func (e *Expander) importTargets(ctx context.Context, s search.Seed) ([]resolve.Resolved, error) {
	e.mu.Lock()
	cached, ok := e.importCache[s.RelativePath]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	chunks := e.Vectors.ChunksForFile(s.RelativePath)
	if len(chunks) == 0 {
		return nil, nil
	}
	language := chunks[0].Language

	source, err := os.ReadFile(path.Join(e.RepoRoot, s.RelativePath))
	if err != nil {
		return nil, err
	}

	parser := e.Parsers.Get()
	defer e.Parsers.Put(parser)
	tree, err := parser.Parse(ctx, source, language)
	if err != nil {
		return nil, err
	}

	index := e.repoIndex(ctx)
	resolved := e.Resolvers.Resolve(tree, source, s.RelativePath, language, index)

	e.mu.Lock()
	e.importCache[s.RelativePath] = resolved
	e.mu.Unlock()
	return resolved, nil
}

// chunksForTarget resolves a Resolved.Target to its chunks. Most
// resolvers return an exact file path; the Go resolver returns the
// owning directory (a Go import names a package, not a file), so when
// there's no exact-path match, every tracked file directly inside
// that directory contributes its chunks.
func (e *Expander) chunksForTarget(ctx context.Context, target string) []*chunk.Chunk {
	if cs := e.Vectors.ChunksForFile(target); len(cs) > 0 {
		return cs
	}
	if e.Metadata == nil {
		return nil
	}
	paths, err := e.Metadata.ListPaths(ctx)
	if err != nil {
		return nil
	}
	var out []*chunk.Chunk
	for _, p := range paths {
		if path.Dir(p) == target {
			out = append(out, e.Vectors.ChunksForFile(p)...)
		}
	}
	return out
}

// importChunks implements E3: up to import_files_per_seed resolved
// import targets, up to chunks_per_import_file chunks per target,
// preferring chunks whose breadcrumb best matches an identifier
// co-occurring with the seed, ties broken by chunk_index = 0.
func (e *Expander) importChunks(ctx context.Context, s search.Seed, imports []resolve.Resolved) []Expanded {
	seedIdentifiers := e.seedIdentifiers(s)

	targets := make([]string, 0, e.Config.ImportFilesPerSeed)
	seenTarget := make(map[string]struct{})
	for _, r := range imports {
		if r.Target == "" {
			continue
		}
		if _, ok := seenTarget[r.Target]; ok {
			continue
		}
		seenTarget[r.Target] = struct{}{}
		targets = append(targets, r.Target)
		if len(targets) >= e.Config.ImportFilesPerSeed {
			break
		}
	}

	var out []Expanded
	for _, target := range targets {
		fileChunks := e.chunksForTarget(ctx, target)
		sort.Slice(fileChunks, func(i, j int) bool {
			mi, mj := breadcrumbMatchScore(fileChunks[i], seedIdentifiers), breadcrumbMatchScore(fileChunks[j], seedIdentifiers)
			if mi != mj {
				return mi > mj
			}
			// Ties broken by chunk_index = 0 first.
			if (fileChunks[i].ChunkIndex == 0) != (fileChunks[j].ChunkIndex == 0) {
				return fileChunks[i].ChunkIndex == 0
			}
			return fileChunks[i].ChunkIndex < fileChunks[j].ChunkIndex
		})

		limit := e.Config.ChunksPerImportFile
		if len(fileChunks) < limit {
			limit = len(fileChunks)
		}
		for _, c := range fileChunks[:limit] {
			out = append(out, Expanded{
				ChunkID:      c.ChunkID,
				RelativePath: c.RelativePath,
				ChunkIndex:   c.ChunkIndex,
				Score:        s.Score * e.Config.NeighborDecay, // fixed single-hop decay per spec.md §4.10
				Phase:        PhaseImport,
				FromSeed:     s.ChunkID,
			})
		}
	}
	return out
}

func (e *Expander) seedIdentifiers(s search.Seed) map[string]struct{} {
	ids := make(map[string]struct{})
	if c := e.Vectors.GetChunk(s.ChunkID); c != nil {
		for _, tok := range store.TokenizeCode(c.DisplayCode) {
			ids[tok] = struct{}{}
		}
		for _, tok := range store.TokenizeCode(c.Breadcrumb) {
			ids[tok] = struct{}{}
		}
	}
	return ids
}

func breadcrumbMatchScore(c *chunk.Chunk, identifiers map[string]struct{}) int {
	score := 0
	for _, tok := range store.TokenizeCode(c.Breadcrumb) {
		if _, ok := identifiers[tok]; ok {
			score++
		}
	}
	return score
}

// repoIndex builds a resolve.RepoIndex over every currently-tracked
// file path, so resolvers can answer existence/directory-name queries
// without touching the filesystem themselves.
func (e *Expander) repoIndex(ctx context.Context) resolve.RepoIndex {
	var paths []string
	if e.Metadata != nil {
		if p, err := e.Metadata.ListPaths(ctx); err == nil {
			paths = p
		}
	}
	return &trackedPathIndex{paths: paths}
}

type trackedPathIndex struct {
	paths []string
}

func (idx *trackedPathIndex) FileExists(relativePath string) bool {
	for _, p := range idx.paths {
		if p == relativePath {
			return true
		}
	}
	return false
}

func (idx *trackedPathIndex) DirsNamed(name string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range idx.paths {
		dir := path.Dir(p)
		for dir != "." && dir != "/" && dir != "" {
			if path.Base(dir) == name {
				if _, ok := seen[dir]; !ok {
					seen[dir] = struct{}{}
					out = append(out, dir)
				}
				break
			}
			dir = path.Dir(dir)
		}
	}
	return out
}

func pow(base, exp float64) float64 {
	result := 1.0
	// neighbor_hops is small (single digits), so a multiplication loop
	// avoids pulling in math.Pow for one call site.
	n := int(exp)
	for i := 0; i < n; i++ {
		result *= base
	}
	return result
}
