// Package store provides the persistence layer: a SQLite-backed metadata
// store for file records, a SQLite FTS5 index over chunk text, and an
// HNSW-backed vector store over chunk embeddings.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lyy0709/contextweaver/internal/chunk"
)

// File is the tracked record for one repository file.
type File struct {
	RelativePath    string    // POSIX-style, relative to repo root; primary key
	ContentHash     string    // sha256 of file content
	Mtime           time.Time // filesystem modification time
	Size            int64     // bytes
	Language        string    // detected language tag
	VectorIndexHash string    // content_hash at last successful embedding; "" if never indexed
}

// NeedsReindex reports whether the vector index is stale relative to the
// file's current content.
func (f *File) NeedsReindex() bool {
	return f.VectorIndexHash == "" || f.VectorIndexHash != f.ContentHash
}

// MetadataStore persists File records and a small key/value state pane.
// It does not store chunk text or vectors; those live in the FTS index
// and the vector store, keyed by chunk ID.
type MetadataStore interface {
	// UpsertFiles inserts or replaces File rows, keyed by RelativePath.
	UpsertFiles(ctx context.Context, files []*File) error

	// DeleteFiles removes File rows for the given paths. Missing paths
	// are ignored.
	DeleteFiles(ctx context.Context, relativePaths []string) error

	// GetFile returns the File record for a path, or nil if absent.
	GetFile(ctx context.Context, relativePath string) (*File, error)

	// ListPaths returns every tracked relative path.
	ListPaths(ctx context.Context) ([]string, error)

	// NeedsReindex returns File records whose VectorIndexHash does not
	// match ContentHash (never-indexed or stale-after-edit).
	NeedsReindex(ctx context.Context) ([]*File, error)

	// GetState/SetState expose a small key/value pane for runtime state
	// (embedding model name, embedding dimension, schema version).
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// State keys used in the metadata KV pane.
const (
	StateKeyEmbeddingModel     = "embedding_model"
	StateKeyEmbeddingDimension = "embedding_dimension"
	StateKeySchemaVersion      = "schema_version"
)

// CurrentSchemaVersion is the current on-disk schema version for the
// metadata store and vector store persistence files.
const CurrentSchemaVersion = 1

// FTSResult is a single hit from the chunk full-text index.
type FTSResult struct {
	ChunkID      string
	RelativePath string
	Score        float64 // bm25 score, higher is better
}

// IndexStats describes the chunk full-text index.
type IndexStats struct {
	DocumentCount int
	AvgDocLength  float64
}

// FTSIndex is a full-text index over chunk vector_text (breadcrumb plus
// display_code), supporting phrase queries ("exact phrase"), prefix
// queries (ident*), and token queries combined with OR.
type FTSIndex interface {
	// Index inserts or replaces entries. relativePath/chunkIndex are
	// carried for consistency checks and result filtering.
	Index(ctx context.Context, chunks []*chunk.Chunk) error

	// Search runs an FTS5 MATCH query and returns up to limit hits
	// ordered by score descending. A query that uses FTS5 syntax
	// (quotes, a trailing *, OR/AND/NOT) is passed through unchanged;
	// any other query is code-tokenized and its tokens joined with OR.
	Search(ctx context.Context, query string, limit int) ([]*FTSResult, error)

	// Delete removes entries by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// AllIDs returns every indexed chunk ID, for consistency checks.
	AllIDs() ([]string, error)

	Stats() *IndexStats

	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config tunes the ranking function used by the FTS index.
type BM25Config struct {
	// StopWords is filtered out of indexed and tokenized text.
	StopWords []string

	// MinTokenLength is not read by SQLiteChunkFTS: TokenizeCode always
	// drops tokens shorter than 2 characters (default 2).
	MinTokenLength int
}

// DefaultBM25Config returns the default tokenizer configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords excluded from the
// token vocabulary; they recur in nearly every chunk and carry no
// retrieval signal.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult is a single vector search hit at the store's native
// string-ID granularity.
type VectorResult struct {
	ID       string
	Distance float32 // lower is more similar
	Score    float32 // normalized similarity, 0-1
}

// VectorStoreConfig configures the HNSW graph.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" or "l2"
	M              int    // max connections per layer
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns sensible HNSW defaults for the given
// embedding dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore is the low-level, string-ID-keyed nearest-neighbor index.
// ChunkVectorStore builds file-level atomicity on top of this.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// ScoredChunk is a vector search hit resolved back to its owning chunk
// metadata.
type ScoredChunk struct {
	ChunkID      string
	RelativePath string
	ChunkIndex   int
	Score        float32
}

// ErrDimensionMismatch indicates a query or inserted vector does not
// match the store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex required)", e.Expected, e.Got)
}
