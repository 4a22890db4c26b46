package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
)

// memorySource is an in-memory ChunkSource for ranker tests.
type memorySource struct {
	docs   []model.Document
	chunks map[string][]model.Chunk
	err    error
}

func (m *memorySource) ListDocuments() ([]model.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *memorySource) GetChunks(docID string) ([]model.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks[docID], nil
}

func newSource() *memorySource {
	return &memorySource{chunks: make(map[string][]model.Chunk)}
}

func (m *memorySource) add(doc model.Document, chunks ...model.Chunk) {
	m.docs = append(m.docs, doc)
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	m.chunks[doc.ID] = chunks
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"latin and digits", "configure swp1 MTU", []string{"configure", "swp1", "mtu"}},
		{"drops single latin char", "a swp1 b", []string{"swp1"}},
		{"keeps single cjk", "配 置", []string{"配", "置"}},
		{"mixed scripts split", "mlag怎么配置", []string{"mlag", "怎么配置"}},
		{"empty", "", nil},
		{"all tokens filtered", "a b c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.query))
		})
	}
}

func TestExpandTokens(t *testing.T) {
	out := expandTokens([]string{"配置"})
	assert.Contains(t, out, "配置", "original token kept")
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "nv set")

	// Substring keys of a larger token also expand.
	out = expandTokens([]string{"怎么配置"})
	assert.Contains(t, out, "config")

	// One-hop only: mlag maps to bond, but bond's own synonyms of lacp are
	// not chased a second hop unless bond itself was a token.
	out = expandTokens([]string{"mlag"})
	assert.Contains(t, out, "clag")
	assert.Contains(t, out, "bond")
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		query string
		want  queryIntent
	}{
		{"nv set interface swp1", queryIntent{isCommand: true}},
		{"mlag 怎么配置", queryIntent{isCommand: true}},
		{"what is evpn", queryIntent{isConcept: true}},
		{"bgp 邻居起不来", queryIntent{isTroubleshooting: true}},
		{"hello world", queryIntent{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyIntent(tt.query))
		})
	}
}

func TestKeywordSearch_CommandChunkRanksFirst(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "interface-config.md"},
		model.Chunk{ID: "target", Content: "nv set interface swp1 link state up\nnv config apply", ChunkType: model.ChunkChild},
		model.Chunk{ID: "other", Content: "The weather in the datacenter is always cold.", ChunkType: model.ChunkChild},
	)

	results, err := KeywordSearch(src, "configure swp1", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "target", results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, 0.0)

	// The unrelated chunk matches nothing and is filtered out entirely.
	for _, r := range results {
		assert.NotEqual(t, "other", r.Chunk.ID)
	}
}

func TestKeywordSearch_IntentBonusOrdersMlagFirst(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "fabric.md"},
		model.Chunk{ID: "mlag", Content: "nv set interface bond0 bond mlag-id 1\nnv config apply", ChunkType: model.ChunkChild},
		model.Chunk{ID: "ospf", Content: "ospf area 0 configuration overview for the campus network", ChunkType: model.ChunkChild},
	)

	results, err := KeywordSearch(src, "mlag 怎么配置", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "mlag", results[0].Chunk.ID)
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
}

func TestKeywordSearch_FilenameBonusCounts(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "vxlan-evpn-guide.md"},
		model.Chunk{ID: "c1", Content: "Underlay requirements include a routed fabric with vxlan reachability.", ChunkType: model.ChunkChild},
	)
	src.add(model.Document{ID: "d2", Filename: "notes.md"},
		model.Chunk{ID: "c2", Content: "Underlay requirements include a routed fabric with vxlan reachability.", ChunkType: model.ChunkChild},
	)

	results, err := KeywordSearch(src, "vxlan underlay", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID, "filename match breaks the tie")
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestKeywordSearch_PropagatesSourceError(t *testing.T) {
	src := newSource()
	src.err = errors.New("disk gone")
	_, err := KeywordSearch(src, "anything", 5)
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float64{1, 0}, []float64{1}), "dimension mismatch")
	assert.Zero(t, cosineSimilarity(nil, nil))
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}), "zero vector")
}

func TestVectorSearch_ThresholdAndOrder(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "a.md"},
		model.Chunk{ID: "close", Content: "x", Embedding: []float64{1, 0}, ChunkType: model.ChunkChild},
		model.Chunk{ID: "mid", Content: "y", Embedding: []float64{1, 1}, ChunkType: model.ChunkChild},
		model.Chunk{ID: "orthogonal", Content: "z", Embedding: []float64{0, 1}, ChunkType: model.ChunkChild},
		model.Chunk{ID: "unembedded", Content: "w", ChunkType: model.ChunkChild},
	)

	results, err := VectorSearch(src, []float64{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "orthogonal and unembedded chunks filtered")
	assert.Equal(t, "close", results[0].Chunk.ID)
	assert.Equal(t, "mid", results[1].Chunk.ID)
}

func TestFuse_SourcesAndWeights(t *testing.T) {
	kw := []ScoredChunk{
		{Chunk: model.Chunk{ID: "both", Content: "shared"}, Score: 12},
		{Chunk: model.Chunk{ID: "kw-only", Content: "lexical"}, Score: 4},
	}
	vec := []ScoredChunk{
		{Chunk: model.Chunk{ID: "both", Content: "shared"}, Score: 0.9},
		{Chunk: model.Chunk{ID: "vec-only", Content: "dense"}, Score: 0.5},
	}

	fused := fuse("plain language question", kw, vec, 10)
	require.Len(t, fused, 3)

	byID := make(map[string]FusedChunk)
	for _, f := range fused {
		byID[f.Chunk.Chunk.ID] = f
	}
	assert.ElementsMatch(t, []string{"keyword", "vector"}, byID["both"].Sources)
	assert.Equal(t, []string{"keyword"}, byID["kw-only"].Sources)
	assert.Equal(t, []string{"vector"}, byID["vec-only"].Sources)

	assert.Equal(t, "both", fused[0].Chunk.Chunk.ID, "dual-source chunk wins")
	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, fused[i-1].Score, fused[i].Score)
	}
}

func TestFuse_TechnicalQueryFavorsKeyword(t *testing.T) {
	kw := []ScoredChunk{{Chunk: model.Chunk{ID: "kw"}, Score: 5}}
	vec := []ScoredChunk{{Chunk: model.Chunk{ID: "vec"}, Score: 0.5}}

	fused := fuse("nv show interface", kw, vec, 10)
	require.Len(t, fused, 2)
	// Equal ranks, but keyword weight 1.5 vs vector 0.8.
	assert.Equal(t, "kw", fused[0].Chunk.Chunk.ID)
}

type stubEmbedder struct {
	vec []float64
	err error
}

func (s stubEmbedder) EmbedQuery(context.Context, string) ([]float64, error) {
	return s.vec, s.err
}

func TestEngine_DegradesWithoutEmbedder(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "a.md"},
		model.Chunk{ID: "c1", Content: "nv set interface swp1 mtu 9216", Embedding: []float64{1, 0}, ChunkType: model.ChunkChild},
	)

	eng := NewEngine(src, zap.NewNop())
	results, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, []string{"keyword"}, results[0].Sources)
}

func TestEngine_DegradesOnEmbedderFailure(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "a.md"},
		model.Chunk{ID: "c1", Content: "nv set interface swp1 mtu 9216", Embedding: []float64{1, 0}, ChunkType: model.ChunkChild},
	)

	eng := NewEngine(src, zap.NewNop(), WithEmbedder(stubEmbedder{err: errors.New("provider down")}))
	results, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, []string{"keyword"}, results[0].Sources)
}

func TestEngine_HybridSources(t *testing.T) {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "a.md"},
		model.Chunk{ID: "c1", Content: "nv set interface swp1 mtu 9216", Embedding: []float64{1, 0, 0}, ChunkType: model.ChunkChild},
	)

	eng := NewEngine(src, zap.NewNop(), WithEmbedder(stubEmbedder{vec: []float64{1, 0, 0}}))
	results, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.ElementsMatch(t, []string{"keyword", "vector"}, results[0].Sources)
}

func TestEngine_KeywordFailureIsFatal(t *testing.T) {
	src := newSource()
	src.err = errors.New("disk gone")

	eng := NewEngine(src, zap.NewNop())
	_, err := eng.Search(context.Background(), "anything", 5)
	assert.Error(t, err)
}

type stubReranker struct {
	ranked []RankedDocument
	err    error
}

func (s stubReranker) Rerank(context.Context, string, []string) ([]RankedDocument, error) {
	return s.ranked, s.err
}

func rerankSource() *memorySource {
	src := newSource()
	src.add(model.Document{ID: "d1", Filename: "a.md"},
		model.Chunk{ID: "c1", Content: "nv set interface swp1 mtu 9216", ChunkType: model.ChunkChild},
		model.Chunk{ID: "c2", Content: "swp1 cabling notes", ChunkType: model.ChunkChild},
	)
	return src
}

func TestEngine_RerankerReorders(t *testing.T) {
	// Verdicts flip the fused order; out-of-range and duplicate indices are
	// dropped, unranked candidates keep their fused position at the tail.
	eng := NewEngine(rerankSource(), zap.NewNop(), WithReranker(stubReranker{
		ranked: []RankedDocument{
			{Index: 1, RelevanceScore: 0.9},
			{Index: 1, RelevanceScore: 0.9},
			{Index: 7, RelevanceScore: 0.5},
		},
	}))

	results, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].Chunk.Chunk.ID)
	assert.Equal(t, "c1", results[1].Chunk.Chunk.ID)
}

func TestEngine_RerankerFailureKeepsFusedOrder(t *testing.T) {
	src := rerankSource()

	eng := NewEngine(src, zap.NewNop())
	fused, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.Len(t, fused, 2)

	eng = NewEngine(src, zap.NewNop(), WithReranker(stubReranker{err: errors.New("provider down")}))
	results, err := eng.Search(context.Background(), "configure swp1 mtu", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, fused[0].Chunk.Chunk.ID, results[0].Chunk.Chunk.ID)
	assert.Equal(t, fused[1].Chunk.Chunk.ID, results[1].Chunk.Chunk.ID)
}
