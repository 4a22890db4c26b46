package search

import (
	"regexp"
	"sort"
	"strings"
)

// FusedChunk is one hybrid result: the chunk, its reciprocal-rank-fused
// score, and which rankers surfaced it.
type FusedChunk struct {
	Chunk   ScoredChunkRef
	Score   float64
	Sources []string
}

// ScoredChunkRef carries the chunk along with the raw per-ranker scores
// that fed the fusion, for response payloads and debugging.
type ScoredChunkRef struct {
	ScoredChunk
	KeywordScore float64
	VectorScore  float64
}

const rrfK = 60.0

// technicalQuery detects command-style and protocol-heavy queries that
// should trust the lexical ranking over the dense one.
var technicalQuery = regexp.MustCompile(`mlag|bgp|evpn|vxlan|bond|cumulus|nv set|nv show|show|如何|配置|命令`)

// fuse merges the two rankings with Reciprocal Rank Fusion. Each list
// contributes weight/(k+rank) per chunk, with intent-aware weights, plus
// small additive bonuses for strong raw scores and command-pattern hits.
func fuse(query string, keyword, vector []ScoredChunk, limit int) []FusedChunk {
	lowered := strings.ToLower(query)

	keywordWeight, vectorWeight := 1.0, 1.0
	if technicalQuery.MatchString(lowered) {
		keywordWeight, vectorWeight = 1.5, 0.8
	}
	isCommand := classifyIntent(query).isCommand

	merged := make(map[string]*FusedChunk)

	upsert := func(sc ScoredChunk) *FusedChunk {
		f, ok := merged[sc.Chunk.ID]
		if !ok {
			f = &FusedChunk{Chunk: ScoredChunkRef{ScoredChunk: sc}}
			merged[sc.Chunk.ID] = f
		}
		return f
	}

	for rank, sc := range keyword {
		f := upsert(sc)
		f.Chunk.KeywordScore = sc.Score
		f.Score += keywordWeight / (rrfK + float64(rank+1))
		if sc.Score > 10 {
			f.Score += 0.05
		}
		f.Sources = append(f.Sources, "keyword")
	}

	for rank, sc := range vector {
		f := upsert(sc)
		f.Chunk.VectorScore = sc.Score
		f.Score += vectorWeight / (rrfK + float64(rank+1))
		if sc.Score > 0.85 {
			f.Score += 0.05
		}
		f.Sources = append(f.Sources, "vector")
	}

	if isCommand {
		for _, f := range merged {
			content := strings.ToLower(f.Chunk.Chunk.Content)
			if strings.Contains(content, "nv set") ||
				strings.Contains(content, "nv show") ||
				strings.Contains(content, "```") {
				f.Score += 0.08
			}
			if strings.Contains(lowered, "mlag") &&
				(strings.Contains(content, "mlag") || strings.Contains(content, "bond mlag")) {
				f.Score += 0.1
			}
		}
	}

	out := make([]FusedChunk, 0, len(merged))
	for _, f := range merged {
		out = append(out, *f)
	}
	sortFused(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortFused(results []FusedChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
