package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyy0709/contextweaver/internal/store"
)

// InconsistencyType categorizes detected cross-store issues, per
// spec.md §7's StoreError policy: the vector store is authoritative,
// the FTS index is advisory and re-applied by a later scan.
type InconsistencyType int

const (
	// InconsistencyOrphanFTS indicates an FTS entry without a matching
	// tracked file record.
	InconsistencyOrphanFTS InconsistencyType = iota
	// InconsistencyOrphanVector indicates a vector entry without a
	// matching tracked file record.
	InconsistencyOrphanVector
	// InconsistencyMissingFTS indicates a vector-store chunk missing
	// from the FTS index.
	InconsistencyMissingFTS
	// InconsistencyDirtyFile indicates a tracked file whose
	// vector_index_hash has drifted from its content_hash.
	InconsistencyDirtyFile
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanFTS:
		return "orphan_fts"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingFTS:
		return "missing_fts"
	case InconsistencyDirtyFile:
		return "dirty_file"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunks verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// ConsistencyChecker validates cross-store consistency: every chunk
// the vector store holds for a tracked file should also be present in
// the FTS index, and every tracked file's vector_index_hash should
// match its content_hash.
type ConsistencyChecker struct {
	Metadata store.MetadataStore
	Vectors  *store.VectorChunkStore
	FTS      store.FTSIndex
}

// NewConsistencyChecker creates a new checker with the given stores.
func NewConsistencyChecker(metadata store.MetadataStore, vectors *store.VectorChunkStore, fts store.FTSIndex) *ConsistencyChecker {
	return &ConsistencyChecker{Metadata: metadata, Vectors: vectors, FTS: fts}
}

// Check scans the vector store (authoritative) against the FTS index
// and the metadata store's dirty-file tracking for drift.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency
	checked := 0

	ftsIDs, err := c.FTS.AllIDs()
	if err != nil {
		slog.Warn("failed to get FTS ids for consistency check", slog.String("error", err.Error()))
	}
	ftsSet := make(map[string]bool, len(ftsIDs))
	for _, id := range ftsIDs {
		ftsSet[id] = true
	}

	paths, err := c.Metadata.ListPaths(ctx)
	if err != nil {
		return nil, err
	}

	vectorSet := make(map[string]bool)
	for _, path := range paths {
		for _, chunk := range c.Vectors.ChunksForFile(path) {
			checked++
			vectorSet[chunk.ChunkID] = true
			if !ftsSet[chunk.ChunkID] {
				issues = append(issues, Inconsistency{
					Type:    InconsistencyMissingFTS,
					ChunkID: chunk.ChunkID,
					Details: "vector store chunk missing from FTS index",
				})
			}
		}

		file, err := c.Metadata.GetFile(ctx, path)
		if err == nil && file != nil && file.NeedsReindex() {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyDirtyFile,
				ChunkID: path,
				Details: "vector_index_hash does not match content_hash",
			})
		}
	}

	for id := range ftsSet {
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanFTS,
				ChunkID: id,
				Details: "FTS entry without a matching vector store chunk",
			})
		}
	}

	return &CheckResult{
		Checked:         checked,
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair fixes detected inconsistencies where it safely can: FTS
// orphans are deleted outright (best-effort, the vector store stays
// authoritative); missing-FTS and dirty-file issues require a re-scan
// to re-chunk and re-embed, so they are only logged.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanFTS []string
	var needsRescan int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanFTS:
			orphanFTS = append(orphanFTS, issue.ChunkID)
		case InconsistencyMissingFTS, InconsistencyDirtyFile, InconsistencyOrphanVector:
			needsRescan++
		}
	}

	if len(orphanFTS) > 0 {
		if err := c.FTS.Delete(ctx, orphanFTS); err != nil {
			slog.Warn("failed to delete orphan FTS entries", slog.Int("count", len(orphanFTS)), slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan FTS entries", slog.Int("count", len(orphanFTS)))
		}
	}

	if needsRescan > 0 {
		slog.Warn("index has entries needing a re-scan to repair", slog.Int("count", needsRescan))
	}

	return nil
}

// QuickCheck reports whether every tracked file is clean: it returns
// false as soon as one file is dirty. It does not scan chunk-level
// FTS/vector agreement.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	paths, err := c.Metadata.ListPaths(ctx)
	if err != nil {
		return false, err
	}
	for _, path := range paths {
		file, err := c.Metadata.GetFile(ctx, path)
		if err != nil {
			return false, err
		}
		if file != nil && file.NeedsReindex() {
			return false, nil
		}
	}
	return true, nil
}
