package search

// RerankedChunk is one chunk's identity plus its reranker score,
// already sorted descending by Score by the caller.
type RerankedChunk struct {
	ChunkID      string
	RelativePath string
	ChunkIndex   int
	Score        float64
}

// SmartTopK applies the adaptive cutoff of spec.md §4.9 step 6 to a
// descending-sorted reranked list, returning the surviving prefix as
// seeds. No teacher analogue exists (the teacher applies a fixed
// top-N cutoff); this is new.
func SmartTopK(reranked []*RerankedChunk, cfg Config) []Seed {
	if len(reranked) == 0 {
		return nil
	}

	s1 := reranked[0].Score
	tauDyn := s1 * cfg.SmartTopScoreRatio
	tauAbs := cfg.SmartMinScore

	// Delta Guard: a lone outlier top hit must not set an unreachable
	// dynamic threshold for everyone after it.
	if len(reranked) >= 2 {
		s2 := reranked[1].Score
		if s2 < s1*cfg.DeltaGuardRatio {
			tauDyn = s2 * cfg.SmartTopScoreRatio
		}
	}

	threshold := tauDyn
	if tauAbs > threshold {
		threshold = tauAbs
	}

	seeds := make([]Seed, 0, cfg.SmartMaxK)
	for i, r := range reranked {
		if len(seeds) >= cfg.SmartMaxK {
			break
		}

		var passes bool
		if i < cfg.SmartMinK {
			passes = r.Score >= tauAbs
		} else {
			passes = r.Score >= threshold
		}
		if !passes {
			break
		}

		seeds = append(seeds, Seed{
			ChunkID:      r.ChunkID,
			RelativePath: r.RelativePath,
			ChunkIndex:   r.ChunkIndex,
			Score:        r.Score,
			Source:       SourceFused,
		})
	}

	return seeds
}
