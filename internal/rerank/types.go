package rerank

import (
	"context"
	"time"
)

// DefaultRequestTimeout is the per-request timeout applied to every
// rerank call.
const DefaultRequestTimeout = 90 * time.Second

// Result is a single reranked passage: Index is its position in the
// caller's original passages slice, Score its relevance score. Only
// relative ordering matters to callers — the scores themselves are
// not compared across reranker models.
type Result struct {
	Index int
	Score float64
}

// Reranker scores passages against a query using a cross-encoder
// model. A reranker failure is non-fatal to the surrounding search:
// callers fall back to pre-rerank (fusion) order on error.
type Reranker interface {
	// Rerank scores documents against query and returns results
	// sorted by score descending, truncated to topN (0 = no limit).
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Result, error)

	Close() error
}

// NoOpReranker returns documents in their original order with
// decreasing synthetic scores. Used as the fallback when no reranker
// is configured, or when a reranker call fails.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i := range documents {
		results[i] = Result{Index: i, Score: 1.0 - float64(i)*0.0001}
	}
	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}
	return results, nil
}

func (NoOpReranker) Close() error { return nil }

var _ Reranker = NoOpReranker{}
