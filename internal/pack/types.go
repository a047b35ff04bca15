// Package pack implements ContextPacker, the final stage of a query:
// group the seed-and-expanded chunk set by file, merge adjacent
// chunks into segments, and greedily admit segments under a character
// budget (spec.md §4.11).
package pack

// Config holds the tunable parameters of the packing stage, named
// after spec.md's literal option names.
type Config struct {
	TokensPerChar      float64 // tokens_per_char
	MaxTotalChars      int     // max_total_chars
	MaxSegmentsPerFile int     // max_segments_per_file
}

// DefaultConfig returns the default parameter set.
func DefaultConfig() Config {
	return Config{
		TokensPerChar:      0.28,
		MaxTotalChars:      48000,
		MaxSegmentsPerFile: 3,
	}
}

// Segment is one merged, contiguous (or near-contiguous) run of
// chunks within a file, admitted into the final pack.
type Segment struct {
	RelativePath  string
	StartLine     int
	EndLine       int
	Breadcrumb    string
	Language      string
	Text          string
	TokenEstimate int
	Truncated     bool // true if cut at a line boundary to fit the budget alone
}

// FilePack groups a file's admitted segments, in the order they
// should be presented.
type FilePack struct {
	RelativePath string
	Segments     []Segment
}

// ContextPack is the terminal output of a query: the seed chunk ids,
// the chunk ids GraphExpander added, and the file-grouped segments
// built from their union.
type ContextPack struct {
	SeedChunkIDs     []string
	ExpandedChunkIDs []string
	Files            []FilePack
}
