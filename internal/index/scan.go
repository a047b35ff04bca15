package index

import (
	"context"
	"fmt"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/scanner"
)

// Runner is the top-level `scan` entry point: crawl, classify against
// tracked metadata, and hand the result to an Indexer, all serialized
// by a per-project ScanLock. Grounded on the teacher's runner.go
// (Scanner + chunker + embedder wiring under a single orchestration
// call), generalized to the redesigned Indexer.Apply.
type Runner struct {
	Scanner *scanner.Scanner
	Indexer *Indexer
	Lock    *ScanLock
}

// NewRunner constructs a Runner.
func NewRunner(s *scanner.Scanner, indexer *Indexer, lock *ScanLock) *Runner {
	return &Runner{Scanner: s, Indexer: indexer, Lock: lock}
}

// ScanOptions configures one Scan call, named after spec.md §6's
// `scan(repo_path, {force, vector_index, on_progress})` tool surface.
type ScanOptions struct {
	RepoRoot        string
	ExcludePatterns []string
	MaxFileSize     int64
	OnEmbedProgress chan<- embed.ProgressEvent

	// Force re-embeds every tracked file regardless of content hash,
	// by promoting Unchanged classifications to Modified before Apply.
	Force bool
}

// Scan acquires the project's scan lock, crawls the repository,
// classifies files against tracked metadata, and applies the result
// through the Indexer, returning the spec.md §6 counts shape.
func (r *Runner) Scan(ctx context.Context, opts ScanOptions) (Counts, error) {
	if err := r.Lock.Lock(); err != nil {
		return Counts{}, fmt.Errorf("scan lock: %w", err)
	}
	defer r.Lock.Unlock()

	results, err := r.Scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          opts.RepoRoot,
		ExcludePatterns:  opts.ExcludePatterns,
		RespectGitignore: true,
		MaxFileSize:      opts.MaxFileSize,
	})
	if err != nil {
		return Counts{}, fmt.Errorf("crawl: %w", err)
	}

	var files []*scanner.FileInfo
	var counts Counts
	for res := range results {
		if res.Error != nil {
			counts.Skipped++
			continue
		}
		files = append(files, res.File)
	}

	fileResults, err := Classify(ctx, r.Indexer.Metadata, opts.RepoRoot, files)
	if err != nil {
		return counts, fmt.Errorf("classify: %w", err)
	}

	if opts.Force {
		for i, fr := range fileResults {
			if fr.Status == StatusUnchanged {
				fileResults[i].Status = StatusModified
			}
		}
	}

	applied, err := r.Indexer.Apply(ctx, fileResults, opts.OnEmbedProgress)
	if err != nil {
		return applied, fmt.Errorf("apply: %w", err)
	}

	applied.Skipped += counts.Skipped
	return applied, nil
}
