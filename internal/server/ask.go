package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hsn0918/netkb/internal/clients/openai"
)

const (
	askContextChunks = 5
	askMaxTokens     = 1024
)

type askRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// askChunks answers a question grounded on the top retrieved chunks via the
// chat provider. Unavailable when no LLM is configured.
func (s *Server) askChunks(c *gin.Context) {
	if s.llm == nil {
		fail(c, http.StatusServiceUnavailable, "chat provider not configured", nil)
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = askContextChunks
	}

	fused, err := s.engine.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "search failed", err)
		return
	}
	if len(fused) == 0 {
		ok(c, gin.H{"answer": "", "chunks": []searchResult{}})
		return
	}

	var ctxt strings.Builder
	for i, f := range fused {
		fmt.Fprintf(&ctxt, "[%d] %s\n\n", i+1, f.Chunk.Chunk.Content)
	}

	messages := []openai.Message{
		{Role: "system", Content: "你是网络运维知识库助手。仅依据提供的文档片段回答，引用片段编号；片段中没有的信息要明确说明未找到。"},
		{Role: "user", Content: fmt.Sprintf("文档片段:\n%s\n问题: %s", ctxt.String(), req.Query)},
	}

	answer, err := s.llm.Complete(c.Request.Context(), messages, askMaxTokens)
	if err != nil {
		fail(c, http.StatusBadGateway, "chat completion failed", err)
		return
	}

	chunks := make([]searchResult, len(fused))
	for i, f := range fused {
		chunks[i] = searchResult{
			Chunk:   f.Chunk.Chunk,
			Score:   f.Score,
			Sources: f.Sources,
		}
	}
	ok(c, gin.H{"answer": answer, "chunks": chunks})
}
