package store

import (
	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/search"
)

// Store satisfies search.ChunkSource through ListDocuments and GetChunks.
var _ search.ChunkSource = (*Store)(nil)

// SearchChunks runs the lexical ranker over every shard.
func (s *Store) SearchChunks(query string, limit int) ([]search.ScoredChunk, error) {
	results, err := search.KeywordSearch(s, query, limit)
	if err != nil {
		return nil, err
	}
	s.logSearch("keyword", len(results))
	return results, nil
}

// VectorSearchChunks runs the dense cosine scan over every shard.
func (s *Store) VectorSearchChunks(vector []float64, limit int) ([]search.ScoredChunk, error) {
	results, err := search.VectorSearch(s, vector, limit)
	if err != nil {
		return nil, err
	}
	s.logSearch("vector", len(results))
	return results, nil
}

// AllChunks concatenates every document's shard in document-list order.
// Intended for the admin surface; it reads the whole corpus.
func (s *Store) AllChunks() ([]model.Chunk, error) {
	docs, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}
	var all []model.Chunk
	for _, doc := range docs {
		chunks, err := s.GetChunks(doc.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}
