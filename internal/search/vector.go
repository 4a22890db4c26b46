package search

import "math"

// minCosine filters out near-orthogonal matches from the dense scan.
const minCosine = 0.2

// VectorSearch scans every embedded chunk across all shards and returns the
// top-K by cosine similarity against the query vector. Chunks at or below
// the similarity floor are dropped.
func VectorSearch(src ChunkSource, vector []float64, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}
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
		for i := range chunks {
			if !chunks[i].HasEmbedding() {
				continue
			}
			score := cosineSimilarity(vector, chunks[i].Embedding)
			if score > minCosine {
				results = append(results, ScoredChunk{Chunk: chunks[i], Score: score})
			}
		}
	}

	sortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// when the dimensions differ or either vector is zero.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
