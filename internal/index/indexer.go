package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyy0709/contextweaver/internal/chunk"
	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/store"
)

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// Indexer orchestrates chunk -> embed -> write to the vector and FTS
// stores given a set of per-file process results, and self-heals any
// file whose vector_index_hash has drifted from its content_hash.
// Grounded on the teacher's Coordinator (mutex-guarded, slog-logged,
// graceful per-file degradation) generalized to spec.md §4.7's
// literal six-step algorithm and the redesigned store APIs.
type Indexer struct {
	Metadata store.MetadataStore
	Vectors  *store.VectorChunkStore
	FTS      store.FTSIndex
	Embedder embed.Embedder
	Chunker  chunk.Chunker
	Config   Config
}

// NewIndexer constructs an Indexer.
func NewIndexer(metadata store.MetadataStore, vectors *store.VectorChunkStore, fts store.FTSIndex, embedder embed.Embedder, chunker chunk.Chunker, cfg Config) *Indexer {
	return &Indexer{Metadata: metadata, Vectors: vectors, FTS: fts, Embedder: embedder, Chunker: chunker, Config: cfg}
}

type indexEntry struct {
	path    string
	hash    string
	mtime   int64
	size    int64
	lang    string
	chunks  []*chunk.Chunk
	vecText []string
}

// Apply partitions results, embeds once, writes both stores, and
// self-heals drifted file records, following spec.md §4.7's six steps
// in order.
func (ix *Indexer) Apply(ctx context.Context, results []FileResult, onProgress chan<- embed.ProgressEvent) (Counts, error) {
	var counts Counts
	var toIndex []indexEntry
	var toDelete []string

	for _, r := range results {
		switch r.Status {
		case StatusSkipped:
			counts.Skipped++
		case StatusError:
			counts.Errors++
		case StatusDeleted:
			counts.Deleted++
			toDelete = append(toDelete, r.RelativePath)
		case StatusAdded, StatusModified:
			chunks, err := ix.Chunker.Chunk(ctx, &chunk.FileInput{RelativePath: r.RelativePath, Content: r.Content, Language: r.Language})
			if err != nil {
				slog.Warn("chunking failed, file left dirty", slog.String("path", r.RelativePath), slog.String("error", err.Error()))
				counts.Errors++
				continue
			}
			if r.Status == StatusAdded {
				counts.Added++
			} else {
				counts.Modified++
			}
			if len(chunks) == 0 {
				// Empty file: clears any prior chunk set, no embedding
				// needed; still needs the metadata/vector_index_hash
				// reconciliation in steps 3-5, so route through delete.
				toDelete = append(toDelete, r.RelativePath)
				continue
			}
			toIndex = append(toIndex, ix.buildEntry(r, chunks))
		case StatusUnchanged:
			counts.Unchanged++
			file, err := ix.Metadata.GetFile(ctx, r.RelativePath)
			if err != nil || file == nil || !file.NeedsReindex() {
				continue
			}
			// Self-healing: file record is stale relative to the
			// vector/FTS stores even though content didn't change
			// this scan (e.g. a crash between vector write and
			// metadata update on a prior scan). Re-chunk and re-embed
			// so the stores converge.
			chunks, err := ix.Chunker.Chunk(ctx, &chunk.FileInput{RelativePath: r.RelativePath, Content: r.Content, Language: r.Language})
			if err != nil {
				slog.Warn("heal chunking failed", slog.String("path", r.RelativePath), slog.String("error", err.Error()))
				continue
			}
			if len(chunks) == 0 {
				toDelete = append(toDelete, r.RelativePath)
				continue
			}
			toIndex = append(toIndex, ix.buildEntry(r, chunks))
		}
	}

	if err := ix.writeIndexed(ctx, toIndex, onProgress, &counts); err != nil {
		return counts, err
	}
	ix.writeDeleted(ctx, toDelete, &counts)

	return counts, nil
}

func (ix *Indexer) buildEntry(r FileResult, chunks []*chunk.Chunk) indexEntry {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.VectorText
	}
	return indexEntry{path: r.RelativePath, hash: r.ContentHash, mtime: r.Mtime, size: r.Size, lang: r.Language, chunks: chunks, vecText: texts}
}

// writeIndexed runs steps 2-5: one embed_batch call across every
// index+heal file's vector_text, batch_upsert_files into the vector
// store, reconcile the FTS index (non-fatal on failure), then update
// vector_index_hash per file (cleared on failure).
func (ix *Indexer) writeIndexed(ctx context.Context, entries []indexEntry, onProgress chan<- embed.ProgressEvent, counts *Counts) error {
	if len(entries) == 0 {
		return nil
	}

	var allTexts []string
	offsets := make([]int, len(entries)+1)
	for i, e := range entries {
		offsets[i] = len(allTexts)
		allTexts = append(allTexts, e.vecText...)
	}
	offsets[len(entries)] = len(allTexts)

	vectors, err := ix.Embedder.EmbedBatch(ctx, allTexts, onProgress)
	embedFailed := err != nil
	if embedFailed {
		slog.Warn("embedding batch failed, files left dirty", slog.String("error", err.Error()))
	}

	byFile := make(map[string][]*chunk.Chunk, len(entries))
	var files []*store.File
	for i, e := range entries {
		file := &store.File{RelativePath: e.path, ContentHash: e.hash, Size: e.size, Language: e.lang}
		file.Mtime = unixToTime(e.mtime)

		if embedFailed {
			counts.VectorErrors++
			file.VectorIndexHash = ""
			files = append(files, file)
			continue
		}

		for j, c := range e.chunks {
			c.Vector = vectors[offsets[i]+j]
		}
		byFile[e.path] = e.chunks
		file.VectorIndexHash = e.hash
		counts.VectorIndexed++
		files = append(files, file)
	}

	if len(byFile) > 0 {
		if err := ix.Vectors.BatchUpsertFiles(ctx, byFile); err != nil {
			slog.Error("vector store write failed", slog.String("error", err.Error()))
			for _, file := range files {
				if _, ok := byFile[file.RelativePath]; ok {
					file.VectorIndexHash = ""
					counts.VectorIndexed--
					counts.VectorErrors++
				}
			}
			byFile = nil
		}
	}

	if ix.FTS != nil && len(byFile) > 0 {
		var paths []string
		var allChunks []*chunk.Chunk
		for path, chunks := range byFile {
			paths = append(paths, path)
			allChunks = append(allChunks, chunks...)
		}
		if err := ix.deleteFTSForPaths(paths); err != nil {
			slog.Warn("fts delete failed, vector store remains authoritative", slog.String("error", err.Error()))
		}
		if err := ix.FTS.Index(ctx, allChunks); err != nil {
			slog.Warn("fts index failed, vector store remains authoritative", slog.String("error", err.Error()))
		}
	}

	return ix.Metadata.UpsertFiles(ctx, files)
}

// deleteFTSForPaths removes every FTS row belonging to the given
// paths by chunk id, looked up from the vector store (authoritative).
func (ix *Indexer) deleteFTSForPaths(paths []string) error {
	var ids []string
	for _, p := range paths {
		for _, c := range ix.Vectors.ChunksForFile(p) {
			ids = append(ids, c.ChunkID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ix.FTS.Delete(context.Background(), ids)
}

// writeDeleted runs step 6: remove vector + FTS rows and the file
// record for every deleted/emptied path.
func (ix *Indexer) writeDeleted(ctx context.Context, paths []string, counts *Counts) {
	if len(paths) == 0 {
		return
	}
	if err := ix.deleteFTSForPaths(paths); err != nil {
		slog.Warn("fts delete failed during file removal", slog.String("error", err.Error()))
	}
	if err := ix.Vectors.DeleteFiles(ctx, paths); err != nil {
		slog.Error("vector delete failed", slog.String("error", err.Error()))
		counts.VectorErrors += len(paths)
	} else {
		counts.VectorDeleted += len(paths)
	}
	if err := ix.Metadata.DeleteFiles(ctx, paths); err != nil {
		slog.Error("metadata delete failed", slog.String("error", err.Error()))
	}
}
