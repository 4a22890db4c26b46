package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
)

func seedDocument(t *testing.T, st *store.Store, chunks ...model.Chunk) (string, []model.Chunk) {
	t.Helper()
	doc, err := st.CreateDocument(model.Document{Filename: "seed.md"})
	require.NoError(t, err)
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}
	created, err := st.CreateChunks(chunks)
	require.NoError(t, err)
	return doc.ID, created
}

func TestCreateChunks_AssignsIdentity(t *testing.T) {
	st := newStore(t)
	docID, created := seedDocument(t, st,
		model.Chunk{Content: "parent text", ChunkType: model.ChunkParent},
		model.Chunk{Content: "child text", ChunkType: model.ChunkChild},
	)

	require.Len(t, created, 2)
	for _, c := range created {
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
	}

	stored, err := st.GetChunks(docID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGetChunks_MissingShardIsEmpty(t *testing.T) {
	st := newStore(t)
	chunks, err := st.GetChunks("never-created")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestGetChunk(t *testing.T) {
	st := newStore(t)
	docID, created := seedDocument(t, st,
		model.Chunk{Content: "alpha", ChunkType: model.ChunkChild},
	)

	got, err := st.GetChunk(docID, created[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alpha", got.Content)

	got, err = st.GetChunk(docID, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateChunkEmbeddings_FastPath(t *testing.T) {
	st := newStore(t)
	docID, created := seedDocument(t, st,
		model.Chunk{Content: "a", ChunkType: model.ChunkChild},
		model.Chunk{Content: "b", ChunkType: model.ChunkChild},
	)

	res, err := st.UpdateChunkEmbeddings([]store.EmbeddingUpdate{
		{ChunkID: created[0].ID, Embedding: []float64{0.1, 0.2}},
		{ChunkID: "unknown", Embedding: []float64{0.3}},
		{ChunkID: created[1].ID, Embedding: nil}, // empty vector counts failed
	}, docID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failed)

	stored, err := st.GetChunks(docID)
	require.NoError(t, err)
	byID := make(map[string]model.Chunk)
	for _, c := range stored {
		byID[c.ID] = c
	}
	assert.Equal(t, []float64{0.1, 0.2}, byID[created[0].ID].Embedding)
	assert.Empty(t, byID[created[1].ID].Embedding)
}

func TestUpdateChunkEmbeddings_VanishedShardIsSilentNoOp(t *testing.T) {
	st := newStore(t)

	res, err := st.UpdateChunkEmbeddings([]store.EmbeddingUpdate{
		{ChunkID: "c1", Embedding: []float64{1}},
	}, "deleted-doc")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 1, res.Failed)

	// No shard file may appear as a side effect.
	chunks, err := st.GetChunks("deleted-doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestUpdateChunkEmbedding_ScansShards(t *testing.T) {
	st := newStore(t)
	seedDocument(t, st, model.Chunk{Content: "a", ChunkType: model.ChunkChild})
	docB, createdB := seedDocument(t, st, model.Chunk{Content: "b", ChunkType: model.ChunkChild})

	found, err := st.UpdateChunkEmbedding(createdB[0].ID, []float64{0.9})
	require.NoError(t, err)
	assert.True(t, found)

	stored, err := st.GetChunks(docB)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []float64{0.9}, stored[0].Embedding)

	found, err = st.UpdateChunkEmbedding("nowhere", []float64{0.1})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetChunkStats(t *testing.T) {
	st := newStore(t)
	docID, created := seedDocument(t, st,
		model.Chunk{ID: "p1", Content: "parent with children", ChunkType: model.ChunkParent},
		model.Chunk{ID: "c1", Content: "child 1", ChunkType: model.ChunkChild, ParentID: "p1"},
		model.Chunk{ID: "c2", Content: "child 2", ChunkType: model.ChunkChild, ParentID: "p1"},
		model.Chunk{ID: "p2", Content: "childless parent", ChunkType: model.ChunkParent},
	)
	require.Len(t, created, 4)

	_, err := st.UpdateChunkEmbeddings([]store.EmbeddingUpdate{
		{ChunkID: "c1", Embedding: []float64{1, 0}},
	}, docID)
	require.NoError(t, err)

	stats, err := st.GetChunkStats(docID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ParentCount)
	assert.Equal(t, 2, stats.ChildCount)
	assert.Equal(t, 1, stats.WithEmbedding)
	// c2 and the childless parent p2 still need vectors; p1 does not.
	assert.Equal(t, 2, stats.RequiringEmbedding)
}

func TestPendingEmbeddings(t *testing.T) {
	st := newStore(t)
	docID, _ := seedDocument(t, st,
		model.Chunk{ID: "p1", Content: "parent", ChunkType: model.ChunkParent},
		model.Chunk{ID: "c1", Content: "child", ChunkType: model.ChunkChild, ParentID: "p1"},
		model.Chunk{ID: "p2", Content: "leaf parent", ChunkType: model.ChunkParent},
	)

	pending, err := st.PendingEmbeddings(docID)
	require.NoError(t, err)

	ids := make([]string, len(pending))
	for i, c := range pending {
		ids[i] = c.ID
	}
	assert.ElementsMatch(t, []string{"c1", "p2"}, ids,
		"children and childless parents are the retrieval units")
}
