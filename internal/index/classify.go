package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/lyy0709/contextweaver/internal/scanner"
	"github.com/lyy0709/contextweaver/internal/store"
)

// contentHash computes the same stable digest the chunker uses for
// FileHash, so a File record's ContentHash and a Chunk's FileHash
// agree on the same file version.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Classify reads each scanned file, hashes its content, and compares
// it against the tracked File record to produce the added / modified
// / unchanged partition spec.md §4.7 step 1 operates on. Paths tracked
// in metadata but absent from scanned are reported as deleted.
func Classify(ctx context.Context, metadata store.MetadataStore, repoRoot string, scanned []*scanner.FileInfo) ([]FileResult, error) {
	tracked, err := metadata.ListPaths(ctx)
	if err != nil {
		return nil, err
	}
	trackedSet := make(map[string]bool, len(tracked))
	for _, p := range tracked {
		trackedSet[p] = true
	}

	seen := make(map[string]bool, len(scanned))
	results := make([]FileResult, 0, len(scanned))

	for _, f := range scanned {
		seen[f.Path] = true

		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			results = append(results, FileResult{RelativePath: f.Path, Status: StatusError, Err: err})
			continue
		}

		hash := contentHash(content)
		prior, err := metadata.GetFile(ctx, f.Path)
		if err != nil {
			results = append(results, FileResult{RelativePath: f.Path, Status: StatusError, Err: err})
			continue
		}

		status := StatusAdded
		if prior != nil {
			if prior.ContentHash == hash {
				status = StatusUnchanged
			} else {
				status = StatusModified
			}
		}

		results = append(results, FileResult{
			RelativePath: f.Path,
			Status:       status,
			ContentHash:  hash,
			Mtime:        f.ModTime.Unix(),
			Size:         f.Size,
			Language:     f.Language,
			Content:      content,
		})
	}

	for _, p := range tracked {
		if !seen[p] {
			results = append(results, FileResult{RelativePath: p, Status: StatusDeleted})
		}
	}

	return results, nil
}
