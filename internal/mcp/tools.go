package mcp

// ScanInput defines the input schema for the scan tool.
type ScanInput struct {
	RepoPath     string `json:"repo_path" jsonschema:"absolute path to the repository to scan and index"`
	Force        bool   `json:"force,omitempty" jsonschema:"re-embed every file, ignoring content hashes"`
	VectorIndex  bool   `json:"vector_index,omitempty" jsonschema:"accepted but not read; every scan updates the vector index as well as metadata/FTS"`
}

// ScanOutput defines the output schema for the scan tool, mirroring
// index.Counts.
type ScanOutput struct {
	Added     int               `json:"added"`
	Modified  int               `json:"modified"`
	Unchanged int               `json:"unchanged"`
	Deleted   int               `json:"deleted"`
	Skipped   int               `json:"skipped"`
	Errors    int               `json:"errors"`
	VectorIndex VectorIndexCounts `json:"vector_index"`
}

// VectorIndexCounts reports the vector-indexing sub-counts of a scan.
type VectorIndexCounts struct {
	Indexed int `json:"indexed"`
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

// RetrieveInput defines the input schema for the retrieve tool.
type RetrieveInput struct {
	RepoPath           string `json:"repo_path" jsonschema:"absolute path to the previously scanned repository"`
	InformationRequest string `json:"information_request" jsonschema:"a natural-language description of the information needed"`
	TechnicalTerms     string `json:"technical_terms,omitempty" jsonschema:"specific identifiers, symbol names, or keywords to emphasize"`
}

// RetrieveOutput defines the output schema for the retrieve tool: a
// single formatted text block, per spec §6.
type RetrieveOutput struct {
	Text string `json:"text"`
}
