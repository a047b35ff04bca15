// Package graph implements GraphExpander, the three-phase expansion
// around SearchService's seed chunks (spec.md §4.10): E1 neighbors by
// chunk_index, E2 breadcrumb siblings, E3 resolved import targets.
package graph

// Config holds the tunable parameters of the expansion phases, named
// after spec.md's literal option names.
type Config struct {
	NeighborHops          int     // neighbor_hops
	BreadcrumbExpandLimit int     // breadcrumb_expand_limit
	ImportFilesPerSeed    int     // import_files_per_seed (0 disables E3)
	ChunksPerImportFile   int     // chunks_per_import_file
	NeighborDecay         float64 // neighbor_decay
}

// DefaultConfig returns the default parameter set. ImportFilesPerSeed
// is 0 by default, making E3 a no-op for tool integrations that don't
// want cross-file import expansion.
func DefaultConfig() Config {
	return Config{
		NeighborHops:          2,
		BreadcrumbExpandLimit: 3,
		ImportFilesPerSeed:    0,
		ChunksPerImportFile:   2,
		NeighborDecay:         0.85,
	}
}

// Phase tags which expansion phase produced an Expanded chunk.
type Phase string

const (
	PhaseNeighbor   Phase = "neighbor"
	PhaseBreadcrumb Phase = "breadcrumb"
	PhaseImport     Phase = "import"
)

// Expanded is one chunk admitted by an expansion phase, carrying the
// seed-derived score it inherited.
type Expanded struct {
	ChunkID      string
	RelativePath string
	ChunkIndex   int
	Score        float64
	Phase        Phase
	FromSeed     string // chunk_id of the seed this was expanded from
}
