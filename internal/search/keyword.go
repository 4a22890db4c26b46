package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/hsn0918/netkb/internal/model"
)

// ChunkSource is the slice of the store the rankers read: the document list
// and the per-document chunk shards.
type ChunkSource interface {
	ListDocuments() ([]model.Document, error)
	GetChunks(docID string) ([]model.Chunk, error)
}

// ScoredChunk is one ranked result with its per-scorer raw score.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float64
}

const (
	technicalTermWeight = 3.0
	plainTermWeight     = 1.0
	multiMatchWeight    = 1.5
	docFilenameBonus    = 2.0
	rawQueryBonus       = 10.0
	intentFloor         = 2.0
)

var (
	technicalToken = regexp.MustCompile(`^[a-z0-9]+$`)
	commandShape   = regexp.MustCompile(`(nv|show|netq|vtysh) (config|show|ip|interface|platform)`)
	conceptShape   = regexp.MustCompile(`(?:^|[\s>#*])[\p{Han}a-zA-Z][^。.\n]{0,60}(?:is a|is an|是一种|指的是)`)
)

// KeywordSearch ranks every chunk in every shard against the query using
// lexical scoring with synonym expansion and intent bonuses. Only chunks
// with a positive score are returned, sorted descending.
func KeywordSearch(src ChunkSource, query string, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}
	tokens := expandTokens(tokenize(query))
	intent := classifyIntent(query)
	rawQuery := strings.ToLower(strings.TrimSpace(query))

	docs, err := src.ListDocuments()
	if err != nil {
		return nil, err
	}

	var results []ScoredChunk
	for _, doc := range docs {
		chunks, err := src.GetChunks(doc.ID)
		if err != nil {
			return nil, err
		}

		docBonus := 0.0
		filename := strings.ToLower(doc.Filename)
		for _, tok := range tokens {
			if strings.Contains(filename, tok) {
				docBonus += docFilenameBonus
			}
		}

		for i := range chunks {
			score := scoreChunk(&chunks[i], rawQuery, tokens, intent, docBonus)
			if score > 0 {
				results = append(results, ScoredChunk{Chunk: chunks[i], Score: score})
			}
			// Keep the buffer bounded while scanning large corpora.
			if len(results) > 50*limit {
				sortByScore(results)
				results = results[:25*limit]
			}
		}
	}

	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreChunk(c *model.Chunk, rawQuery string, tokens []string, intent queryIntent, docBonus float64) float64 {
	content := strings.ToLower(c.Content)
	score := docBonus

	if rawQuery != "" && strings.Contains(content, rawQuery) {
		score += rawQueryBonus
	}

	matched := 0
	for _, tok := range tokens {
		freq := strings.Count(content, tok)
		if freq == 0 {
			continue
		}
		matched++
		w := plainTermWeight
		if technicalToken.MatchString(tok) {
			w = technicalTermWeight
		}
		score += (1 + math.Log(float64(freq))) * w
	}
	if matched >= 2 {
		score += float64(matched) * multiMatchWeight
	}

	if score > intentFloor {
		score += intentBonus(content, rawQuery, intent)
	}
	return score
}

// intentBonus applies the per-intent chunk bonuses. The caller gates it on
// the base score so pure-bonus chunks never surface.
func intentBonus(content, rawQuery string, intent queryIntent) float64 {
	bonus := 0.0

	if intent.isCommand {
		if strings.Contains(content, "nv config") ||
			strings.Contains(content, "nv show") ||
			strings.Contains(content, "nv set") ||
			commandShape.MatchString(content) ||
			strings.Contains(content, "```") {
			bonus += 10
		}
		if strings.Contains(rawQuery, "show") && strings.Contains(content, "show") {
			bonus += 5
		}
		if strings.Contains(rawQuery, "config") && strings.Contains(content, "config") {
			bonus += 5
		}
		if strings.Contains(rawQuery, "set") && strings.Contains(content, "set") {
			bonus += 8
		}
		if strings.Contains(rawQuery, "mlag") && strings.Contains(content, "mlag") &&
			strings.Contains(content, "bond") {
			bonus += 15
		}
	}

	if intent.isConcept {
		if conceptShape.MatchString(content) {
			bonus += 15
		}
		if strings.HasPrefix(strings.TrimSpace(content), "#") {
			bonus += 10
		}
	}

	if intent.isTroubleshooting {
		for _, marker := range []string{
			"error", "fail", "failure", "down", "drop",
			"troubleshoot", "debug", "log", "problem", "issue",
		} {
			if strings.Contains(content, marker) {
				bonus += 15
				break
			}
		}
	}
	return bonus
}

func sortByScore(results []ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
