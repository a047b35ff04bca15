package pack

import (
	"math"
	"sort"
	"strings"

	"github.com/lyy0709/contextweaver/internal/chunk"
	"github.com/lyy0709/contextweaver/internal/graph"
	"github.com/lyy0709/contextweaver/internal/search"
	"github.com/lyy0709/contextweaver/internal/store"
)

// Packer builds a ContextPack from a query's seed and expanded chunk
// sets. No teacher analogue exists; grounded directly on spec.md
// §4.11's literal four-step algorithm.
type Packer struct {
	Vectors *store.VectorChunkStore
	Config  Config
}

// NewPacker constructs a Packer.
func NewPacker(vectors *store.VectorChunkStore, cfg Config) *Packer {
	return &Packer{Vectors: vectors, Config: cfg}
}

type candidate struct {
	chunkID      string
	relativePath string
	chunkIndex   int
	score        float64
	isSeed       bool
	chunk        *chunk.Chunk
}

// Build runs the grouping, merging, and token-budget admission steps
// and returns the resulting ContextPack.
func (p *Packer) Build(seeds []search.Seed, expanded []graph.Expanded) *ContextPack {
	pack := &ContextPack{}

	byID := make(map[string]*candidate)
	for _, s := range seeds {
		pack.SeedChunkIDs = append(pack.SeedChunkIDs, s.ChunkID)
		c := p.Vectors.GetChunk(s.ChunkID)
		if c == nil {
			continue
		}
		byID[s.ChunkID] = &candidate{chunkID: s.ChunkID, relativePath: s.RelativePath, chunkIndex: s.ChunkIndex, score: s.Score, isSeed: true, chunk: c}
	}
	for _, x := range expanded {
		if _, already := byID[x.ChunkID]; already {
			continue
		}
		pack.ExpandedChunkIDs = append(pack.ExpandedChunkIDs, x.ChunkID)
		c := p.Vectors.GetChunk(x.ChunkID)
		if c == nil {
			continue
		}
		byID[x.ChunkID] = &candidate{chunkID: x.ChunkID, relativePath: x.RelativePath, chunkIndex: x.ChunkIndex, score: x.Score, isSeed: false, chunk: c}
	}

	// Step 1: group by relative_path, sort by chunk_index within file.
	byFile := make(map[string][]*candidate)
	for _, c := range byID {
		byFile[c.relativePath] = append(byFile[c.relativePath], c)
	}
	for path := range byFile {
		sort.Slice(byFile[path], func(i, j int) bool {
			return byFile[path][i].chunkIndex < byFile[path][j].chunkIndex
		})
	}

	// Step 2: merge adjacent/near-adjacent (chunk_index differing by
	// <=1) runs into segments.
	fileSegments := make(map[string][]Segment, len(byFile))
	fileScore := make(map[string]float64, len(byFile))
	for path, candidates := range byFile {
		fileSegments[path] = mergeSegments(candidates)
		best := 0.0
		for _, c := range candidates {
			if c.score > best {
				best = c.score
			}
		}
		fileScore[path] = best
	}

	// Step 3: order files by highest score, greedily admit segments
	// (in first-seed/chunk_index order within a file) under the
	// character budget, capped per file.
	paths := make([]string, 0, len(fileSegments))
	for path := range fileSegments {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		if fileScore[paths[i]] != fileScore[paths[j]] {
			return fileScore[paths[i]] > fileScore[paths[j]]
		}
		return paths[i] < paths[j]
	})

	totalChars := 0
	for _, path := range paths {
		segments := fileSegments[path]
		admitted := make([]Segment, 0, p.Config.MaxSegmentsPerFile)

		for _, seg := range segments {
			if len(admitted) >= p.Config.MaxSegmentsPerFile {
				break
			}

			if totalChars == 0 && len(pack.Files) == 0 && len(admitted) == 0 && len(seg.Text) > p.Config.MaxTotalChars {
				// A single segment alone exceeds the budget: truncate
				// at a line boundary and admit it as the pack's sole
				// content, per spec.md §8 invariant 5.
				seg.Text, seg.EndLine = truncateAtLineBoundary(seg.Text, seg.StartLine, p.Config.MaxTotalChars)
				seg.Truncated = true
				seg.TokenEstimate = estimateTokens(seg.Text, p.Config.TokensPerChar)
				pack.Files = []FilePack{{RelativePath: path, Segments: []Segment{seg}}}
				return pack
			}

			if totalChars+len(seg.Text) > p.Config.MaxTotalChars {
				continue // dropped, not truncated; a later smaller segment may still fit
			}

			seg.TokenEstimate = estimateTokens(seg.Text, p.Config.TokensPerChar)
			admitted = append(admitted, seg)
			totalChars += len(seg.Text)
		}

		if len(admitted) > 0 {
			pack.Files = append(pack.Files, FilePack{RelativePath: path, Segments: admitted})
		}
	}

	return pack
}

// mergeSegments merges chunk_index-adjacent-or-near-adjacent (gap <=
// 1) candidates, already sorted by chunk_index, into Segments.
func mergeSegments(candidates []*candidate) []Segment {
	var out []Segment
	i := 0
	for i < len(candidates) {
		j := i + 1
		for j < len(candidates) && candidates[j].chunkIndex-candidates[j-1].chunkIndex <= 1 {
			j++
		}
		out = append(out, buildSegment(candidates[i:j]))
		i = j
	}
	return out
}

func buildSegment(group []*candidate) Segment {
	first := group[0].chunk
	seg := Segment{
		RelativePath: group[0].relativePath,
		StartLine:    first.StartLine,
		EndLine:      first.EndLine,
		Language:     first.Language,
		Breadcrumb:   first.Breadcrumb,
	}

	texts := make([]string, 0, len(group))
	breadcrumbs := make([]string, 0, len(group))
	for _, c := range group {
		if c.chunk.StartLine < seg.StartLine {
			seg.StartLine = c.chunk.StartLine
		}
		if c.chunk.EndLine > seg.EndLine {
			seg.EndLine = c.chunk.EndLine
		}
		texts = append(texts, c.chunk.DisplayCode)
		breadcrumbs = append(breadcrumbs, c.chunk.Breadcrumb)
	}
	seg.Text = strings.Join(texts, "\n")
	seg.Breadcrumb = longestCommonBreadcrumbPrefix(breadcrumbs)
	return seg
}

// longestCommonBreadcrumbPrefix returns the shared leading ">"-separated
// scope segments across breadcrumbs, joined back with " > ".
func longestCommonBreadcrumbPrefix(breadcrumbs []string) string {
	if len(breadcrumbs) == 0 {
		return ""
	}
	parts := make([][]string, len(breadcrumbs))
	for i, b := range breadcrumbs {
		parts[i] = splitBreadcrumb(b)
	}

	var common []string
	for idx := 0; ; idx++ {
		if idx >= len(parts[0]) {
			break
		}
		segment := parts[0][idx]
		match := true
		for _, p := range parts[1:] {
			if idx >= len(p) || p[idx] != segment {
				match = false
				break
			}
		}
		if !match {
			break
		}
		common = append(common, segment)
	}
	return strings.Join(common, " > ")
}

func splitBreadcrumb(breadcrumb string) []string {
	raw := strings.Split(breadcrumb, ">")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

func estimateTokens(text string, tokensPerChar float64) int {
	return int(math.Ceil(float64(len(text)) * tokensPerChar))
}

// truncateAtLineBoundary cuts text to at most maxChars, backing up to
// the last newline so the cut never splits a line mid-token.
func truncateAtLineBoundary(text string, startLine, maxChars int) (string, int) {
	if len(text) <= maxChars {
		return text, startLine + strings.Count(text, "\n")
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, '\n'); idx >= 0 {
		cut = cut[:idx]
	}
	endLine := startLine + strings.Count(cut, "\n")
	return cut, endLine
}
