// Package search implements hybrid retrieval: parallel vector and
// lexical recall, Reciprocal Rank Fusion, cross-encoder reranking, and
// the Smart-TopK adaptive cutoff.
package search

// RecallSource names a recall path. SmartTopK sets SourceFused on
// every seed; SourceVector and SourceLexical are not assigned.
type RecallSource string

const (
	SourceVector RecallSource = "vector"
	SourceLexical RecallSource = "lexical"
	SourceFused  RecallSource = "fused"
)

// Seed is one surviving chunk after Smart-TopK cutoff. Its Source is
// always SourceFused: which recall list(s) the chunk appeared in is
// not recorded on the seed.
type Seed struct {
	ChunkID      string
	RelativePath string
	ChunkIndex   int
	Score        float64
	Source       RecallSource
}

// Config holds the tunable parameters of the retrieval pipeline, named
// after spec.md's literal option names.
type Config struct {
	VectorTopK       int // vector_top_k
	LexChunksPerFile int // lex_chunks_per_file
	LexTotalChunks   int // lex_total_chunks

	RRFK0    int     // k0
	WeightVec float64 // w_vec
	WeightLex float64 // w_lex
	FusedTopM int     // fused_top_m

	MaxRerankChars int // max_rerank_chars
	RerankTopN     int // rerank_top_n; 0 means no limit

	SmartTopScoreRatio float64 // smart_top_score_ratio
	SmartMinScore      float64 // smart_min_score
	SmartMinK          int     // smart_min_k
	DeltaGuardRatio    float64 // delta_guard_ratio
	SmartMaxK          int     // smart_max_k
}

// DefaultConfig returns the default parameter set named throughout
// spec.md §4.9.
func DefaultConfig() Config {
	return Config{
		VectorTopK:       50,
		LexChunksPerFile: 3,
		LexTotalChunks:   50,

		RRFK0:     60,
		WeightVec: 1.0,
		WeightLex: 0.5,
		FusedTopM: 50,

		MaxRerankChars: 2000,
		RerankTopN:     20,

		SmartTopScoreRatio: 0.5,
		SmartMinScore:      0.25,
		SmartMinK:          2,
		DeltaGuardRatio:    0.4,
		SmartMaxK:          15,
	}
}
