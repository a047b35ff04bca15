package embed

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 32

	// DefaultRequestTimeout is the per-request timeout applied to every
	// remote call (embedding and rerank), per spec's "every remote call
	// carries a per-request timeout" requirement.
	DefaultRequestTimeout = 90 * time.Second
)

// ProgressEvent reports incremental embedding progress, one event per
// completed API batch.
type ProgressEvent struct {
	Completed int
	Total     int
}

// Embedder transforms texts to vectors through a remote endpoint. It
// must be safe for concurrent callers; a single Embedder is shared
// process-wide behind its own RateController.
type Embedder interface {
	// EmbedBatch embeds texts in order, reporting progress after each
	// underlying API batch on the optional channel (nil to ignore).
	EmbedBatch(ctx context.Context, texts []string, onProgress chan<- ProgressEvent) ([][]float32, error)

	// Dimensions returns the configured output vector width D.
	Dimensions() int

	// ModelName returns the configured model identifier.
	ModelName() string

	Close() error
}
