package search

import (
	"sort"

	"github.com/lyy0709/contextweaver/internal/store"
)

// FusedResult is one chunk's combined score after Reciprocal Rank
// Fusion, carrying its rank in each recall list (0 if absent from
// that list).
type FusedResult struct {
	ChunkID      string
	RelativePath string
	ChunkIndex   int
	RRFScore     float64
	VecRank      int
	LexRank      int
}

// RRFFusion computes rrf_score(chunk) = w_vec/(k0+rank_vec) +
// w_lex/(k0+rank_lex), a chunk absent from a list contributing zero
// to that term. Grounded on the teacher's RRFFusion struct/Fuse
// shape; the missing-list handling differs from the teacher's
// missing_rank approach (spec.md §4.9 wants zero contribution, not a
// penalized rank) and the tie-break follows spec.md §5's literal
// ordering guarantee instead of the teacher's in-both-lists rule.
type RRFFusion struct {
	K0 int
}

// NewRRFFusion creates a fusion instance with the default k0=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K0: 60}
}

// Fuse combines vector and lexical recall results. vec and lex are
// each assumed already ranked (index 0 = best).
func (f *RRFFusion) Fuse(vec []*store.ScoredChunk, lex []*store.FTSResult, weightVec, weightLex float64) []*FusedResult {
	k0 := f.K0
	if k0 <= 0 {
		k0 = 60
	}

	byID := make(map[string]*FusedResult, len(vec)+len(lex))

	get := func(chunkID string) *FusedResult {
		if r, ok := byID[chunkID]; ok {
			return r
		}
		r := &FusedResult{ChunkID: chunkID}
		byID[chunkID] = r
		return r
	}

	for i, v := range vec {
		r := get(v.ChunkID)
		r.RelativePath = v.RelativePath
		r.ChunkIndex = v.ChunkIndex
		r.VecRank = i + 1
		r.RRFScore += weightVec / float64(k0+i+1)
	}
	for i, l := range lex {
		r := get(l.ChunkID)
		if r.RelativePath == "" {
			r.RelativePath = l.RelativePath
		}
		r.LexRank = i + 1
		r.RRFScore += weightLex / float64(k0+i+1)
	}

	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if a.VecRank != b.VecRank {
			return a.VecRank > b.VecRank
		}
		return a.ChunkID < b.ChunkID
	})

	return results
}
