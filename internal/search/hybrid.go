// Package search implements hybrid retrieval over the chunk store: a lexical
// scorer with synonym expansion and intent bonuses, a dense cosine scan, and
// reciprocal-rank fusion of the two rankings.
package search

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Embedder turns query text into a dense vector via the external provider.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Reranker reorders a candidate list by relevance to the query. Optional;
// when absent the fused order stands.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RankedDocument, error)
}

// RankedDocument is one reranker verdict, indexing into the candidate list.
type RankedDocument struct {
	Index          int
	RelevanceScore float64
}

// Engine runs the hybrid pipeline. The zero limit defaults to 10.
type Engine struct {
	source   ChunkSource
	embedder Embedder
	reranker Reranker
	log      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder enables the dense branch.
func WithEmbedder(e Embedder) Option {
	return func(eng *Engine) { eng.embedder = e }
}

// WithReranker enables the post-fusion rerank pass.
func WithReranker(r Reranker) Option {
	return func(eng *Engine) { eng.reranker = r }
}

// NewEngine builds an Engine over the given chunk source.
func NewEngine(source ChunkSource, log *zap.Logger, opts ...Option) *Engine {
	eng := &Engine{source: source, log: log}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Search runs both rankers in parallel and fuses their output. The dense
// branch degrades silently: a missing embedder, provider failure or scan
// error yields a keyword-only ranking. A keyword-scorer failure is fatal.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]FusedChunk, error) {
	if limit <= 0 {
		limit = 10
	}

	var keyword, vector []ScoredChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keyword, err = KeywordSearch(e.source, query, limit)
		return err
	})
	g.Go(func() error {
		vector = e.vectorBranch(gctx, query, limit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuse(query, keyword, vector, limit)

	if e.reranker != nil && len(fused) > 1 {
		fused = e.rerank(ctx, query, fused)
	}
	return fused, nil
}

// EmbedQuery exposes the engine's embedder for the vector-only endpoint.
// It errors when no embedder is configured.
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if e.embedder == nil {
		return nil, errors.New("search: no embedding provider configured")
	}
	return e.embedder.EmbedQuery(ctx, query)
}

// vectorBranch embeds the query and scans the shards. All failures are
// logged and reported as an empty ranking.
func (e *Engine) vectorBranch(ctx context.Context, query string, limit int) []ScoredChunk {
	if e.embedder == nil {
		return nil
	}
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.log.Warn("query embedding failed, degrading to keyword-only",
			zap.String("query", query), zap.Error(err))
		return nil
	}
	results, err := VectorSearch(e.source, vec, limit)
	if err != nil {
		e.log.Warn("vector scan failed, degrading to keyword-only", zap.Error(err))
		return nil
	}
	return results
}

// rerank asks the external reranker to reorder the fused candidates. Any
// failure keeps the fused order.
func (e *Engine) rerank(ctx context.Context, query string, fused []FusedChunk) []FusedChunk {
	docs := make([]string, len(fused))
	for i := range fused {
		docs[i] = fused[i].Chunk.Chunk.Content
	}
	ranked, err := e.reranker.Rerank(ctx, query, docs)
	if err != nil {
		e.log.Warn("rerank failed, keeping fused order", zap.Error(err))
		return fused
	}

	out := make([]FusedChunk, 0, len(fused))
	seen := make(map[int]bool, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(fused) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		out = append(out, fused[r.Index])
	}
	for i := range fused {
		if !seen[i] {
			out = append(out, fused[i])
		}
	}
	return out
}
