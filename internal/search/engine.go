package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/rerank"
	"github.com/lyy0709/contextweaver/internal/store"
)

// Engine runs the six-step retrieval pipeline of spec.md §4.9:
// embed query, vector recall, lexical recall, RRF fusion, rerank,
// Smart-TopK cutoff. Grounded on the teacher's engine.go control flow
// (embed → recall → fuse → rerank → cutoff), retargeted at the
// rewritten store/embed/rerank types and the literal Smart-TopK
// cutoff the teacher never implemented.
type Engine struct {
	Embedder embed.Embedder
	Vectors  *store.VectorChunkStore
	FTS      store.FTSIndex
	Reranker rerank.Reranker
	Config   Config
}

// NewEngine constructs an Engine. reranker may be rerank.NoOpReranker{}
// when no reranker endpoint is configured.
func NewEngine(embedder embed.Embedder, vectors *store.VectorChunkStore, fts store.FTSIndex, reranker rerank.Reranker, cfg Config) *Engine {
	return &Engine{Embedder: embedder, Vectors: vectors, FTS: fts, Reranker: reranker, Config: cfg}
}

// BuildSeeds runs the full recall→fusion→rerank→cutoff pipeline and
// returns the surviving seed chunks. An empty or whitespace-only
// query yields an empty seed set (not an error), per spec.md §8's
// boundary behavior.
func (e *Engine) BuildSeeds(ctx context.Context, query string) ([]Seed, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	// Step 1: embed the query once.
	vectors, err := e.Embedder.EmbedBatch(ctx, []string{query}, nil)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("search: embedder returned no vector for query")
	}
	queryVector := vectors[0]

	// Step 2: vector recall.
	vecHits, err := e.Vectors.Search(ctx, queryVector, e.Config.VectorTopK)
	if err != nil {
		return nil, fmt.Errorf("search: vector recall: %w", err)
	}

	// Step 3: lexical recall, capped per file and in total.
	lexHits, err := e.lexicalRecall(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: lexical recall: %w", err)
	}

	if len(vecHits) == 0 && len(lexHits) == 0 {
		return nil, nil
	}

	// Step 4: RRF fusion.
	fusion := &RRFFusion{K0: e.Config.RRFK0}
	fused := fusion.Fuse(vecHits, lexHits, e.Config.WeightVec, e.Config.WeightLex)
	if e.Config.FusedTopM > 0 && len(fused) > e.Config.FusedTopM {
		fused = fused[:e.Config.FusedTopM]
	}

	// Step 5: rerank.
	reranked := e.rerank(ctx, query, fused)

	// Step 6: Smart-TopK cutoff.
	return SmartTopK(reranked, e.Config), nil
}

// lexicalRecall tokenizes the query per spec.md §4.9 step 3 and caps
// the FTS hits per file and in total.
func (e *Engine) lexicalRecall(ctx context.Context, query string) ([]*store.FTSResult, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	// Over-fetch before capping: a file with many matches may occupy
	// the first lex_chunks_per_file*N raw slots before other files
	// appear.
	overfetch := e.Config.LexTotalChunks * 4
	if overfetch <= 0 {
		overfetch = e.Config.LexTotalChunks
	}

	raw, err := e.FTS.Search(ctx, ftsQuery, overfetch)
	if err != nil {
		return nil, err
	}

	perFile := make(map[string]int, len(raw))
	capped := make([]*store.FTSResult, 0, len(raw))
	for _, r := range raw {
		if len(capped) >= e.Config.LexTotalChunks {
			break
		}
		if perFile[r.RelativePath] >= e.Config.LexChunksPerFile {
			continue
		}
		perFile[r.RelativePath]++
		capped = append(capped, r)
	}
	return capped, nil
}

// rerank forms passages from fused chunks' display_code (truncated to
// max_rerank_chars), calls the reranker, and replaces scores. A
// reranker failure is non-fatal: SearchService falls back to
// post-fusion order, per spec.md §7.
func (e *Engine) rerank(ctx context.Context, query string, fused []*FusedResult) []*RerankedChunk {
	if len(fused) == 0 {
		return nil
	}

	passages := make([]string, len(fused))
	for i, fr := range fused {
		text := ""
		if c := e.Vectors.GetChunk(fr.ChunkID); c != nil {
			text = c.DisplayCode
		}
		if e.Config.MaxRerankChars > 0 && len(text) > e.Config.MaxRerankChars {
			text = text[:e.Config.MaxRerankChars]
		}
		passages[i] = text
	}

	results, err := e.Reranker.Rerank(ctx, query, passages, e.Config.RerankTopN)
	if err != nil {
		results = nil // fall through to post-fusion order below
	}
	if len(results) == 0 {
		results = make([]rerank.Result, len(fused))
		for i := range fused {
			results[i] = rerank.Result{Index: i, Score: 1.0 - float64(i)*0.0001}
		}
	}

	out := make([]*RerankedChunk, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(fused) {
			continue
		}
		fr := fused[r.Index]
		out = append(out, &RerankedChunk{
			ChunkID:      fr.ChunkID,
			RelativePath: fr.RelativePath,
			ChunkIndex:   fr.ChunkIndex,
			Score:        r.Score,
		})
	}
	return out
}
