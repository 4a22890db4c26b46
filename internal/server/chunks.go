package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
)

const defaultSearchLimit = 10

// searchResult is the wire form of one hybrid hit.
type searchResult struct {
	Chunk        model.Chunk `json:"chunk"`
	Score        float64     `json:"score"`
	KeywordScore float64     `json:"keywordScore,omitempty"`
	VectorScore  float64     `json:"vectorScore,omitempty"`
	Sources      []string    `json:"sources"`
}

// searchChunks runs the hybrid pipeline for GET /api/chunks/search.
func (s *Server) searchChunks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, "missing query parameter q", nil)
		return
	}
	limit := s.searchLimit(c.Query("limit"))

	started := time.Now()
	fused, err := s.engine.Search(c.Request.Context(), query, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "search failed", err)
		return
	}

	results := make([]searchResult, len(fused))
	for i, f := range fused {
		results[i] = searchResult{
			Chunk:        f.Chunk.Chunk,
			Score:        f.Score,
			KeywordScore: f.Chunk.KeywordScore,
			VectorScore:  f.Chunk.VectorScore,
			Sources:      f.Sources,
		}
	}

	if err := s.store.AppendQueryLog(model.QueryLog{
		Query:       query,
		ResultCount: len(results),
		DurationMs:  time.Since(started).Milliseconds(),
	}); err != nil {
		s.log.Warn("query log write failed", zap.Error(err))
	}

	ok(c, gin.H{"results": results})
}

type vectorSearchRequest struct {
	Query  string    `json:"query"`
	Vector []float64 `json:"vector"`
	Limit  int       `json:"limit"`
}

// vectorSearchChunks runs the dense scan only. Callers pass either a raw
// vector or a query to embed.
func (s *Server) vectorSearchChunks(c *gin.Context) {
	var req vectorSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	vector := req.Vector
	if len(vector) == 0 {
		if req.Query == "" {
			fail(c, http.StatusBadRequest, "either vector or query is required", nil)
			return
		}
		embedded, err := s.engine.EmbedQuery(c.Request.Context(), req.Query)
		if err != nil {
			fail(c, http.StatusBadGateway, "query embedding failed", err)
			return
		}
		vector = embedded
	}

	results, err := s.store.VectorSearchChunks(vector, req.Limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "vector search failed", err)
		return
	}

	out := make([]searchResult, len(results))
	for i, r := range results {
		out[i] = searchResult{
			Chunk:       r.Chunk,
			Score:       r.Score,
			VectorScore: r.Score,
			Sources:     []string{"vector"},
		}
	}
	ok(c, gin.H{"results": out})
}

// listAllChunks dumps every shard. Heavy; intended for the admin surface.
func (s *Server) listAllChunks(c *gin.Context) {
	chunks, err := s.store.AllChunks()
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read chunks", err)
		return
	}
	ok(c, gin.H{"chunks": chunks})
}

type updateEmbeddingRequest struct {
	Embedding []float64 `json:"embedding" binding:"required"`
}

// updateChunkEmbedding sets one chunk's vector without knowing its document.
func (s *Server) updateChunkEmbedding(c *gin.Context) {
	var req updateEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	found, err := s.store.UpdateChunkEmbedding(c.Param("id"), req.Embedding)
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot update embedding", err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "chunk not found", nil)
		return
	}
	ok(c, gin.H{"updated": true})
}

// searchLimit parses the limit parameter, falling back to the settings
// default and then the built-in default.
func (s *Server) searchLimit(raw string) int {
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	if settings, err := s.store.GetSettings(); err == nil && settings.SearchLimit > 0 {
		return settings.SearchLimit
	}
	return defaultSearchLimit
}
