package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return st
}

func TestDocumentCRUD(t *testing.T) {
	st := newStore(t)

	docs, err := st.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs, "fresh store lists no documents")

	created, err := st.CreateDocument(model.Document{Filename: "mlag-guide.md", FileType: "md"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.UploadedAt.IsZero())
	assert.Equal(t, model.DocumentProcessing, created.Status)

	got, err := st.GetDocument(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "mlag-guide.md", got.Filename)

	updated, err := st.UpdateDocument(created.ID, func(d *model.Document) {
		d.Status = model.DocumentReady
		d.Category = "runbooks"
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, model.DocumentReady, updated.Status)
	assert.Equal(t, "runbooks", updated.Category)

	missing, err := st.UpdateDocument("no-such-id", func(d *model.Document) {})
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := st.DeleteDocument(created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = st.GetDocument(created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = st.DeleteDocument(created.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports absence")
}

func TestDeleteDocument_CascadesToShard(t *testing.T) {
	st := newStore(t)

	doc, err := st.CreateDocument(model.Document{Filename: "a.txt"})
	require.NoError(t, err)

	_, err = st.CreateChunks([]model.Chunk{
		{DocumentID: doc.ID, Content: "chunk one", ChunkType: model.ChunkChild},
	})
	require.NoError(t, err)

	deleted, err := st.DeleteDocument(doc.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	chunks, err := st.GetChunks(doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "shard removed with the document")
}

func TestMalformedFilesReadAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chunks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "documents.json"), []byte("{not json"), 0o644))

	st, err := store.New(dir, zap.NewNop())
	require.NoError(t, err)

	docs, err := st.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSettingsRoundTrip(t *testing.T) {
	st := newStore(t)

	settings, err := st.GetSettings()
	require.NoError(t, err)
	assert.Empty(t, settings.APIKeys)

	want := model.Settings{
		APIKeys:        map[string]string{"embedding": "sk-test"},
		EmbeddingModel: "BAAI/bge-m3",
		SearchLimit:    20,
	}
	require.NoError(t, st.SaveSettings(want))

	got, err := st.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCategories(t *testing.T) {
	st := newStore(t)

	cat, err := st.CreateCategory("switch-configs")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.ID)

	cats, err := st.ListCategories()
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "switch-configs", cats[0].Name)

	deleted, err := st.DeleteCategory(cat.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = st.DeleteCategory(cat.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAppendQueryLog_AssignsFields(t *testing.T) {
	st := newStore(t)

	require.NoError(t, st.AppendQueryLog(model.QueryLog{Query: "mlag", ResultCount: 3}))
	require.NoError(t, st.AppendQueryLog(model.QueryLog{Query: "bgp", ResultCount: 1}))

	logs, err := st.ListQueryLogs()
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "mlag", logs[0].Query)
	assert.NotEmpty(t, logs[0].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestWritesAreImmediatelyVisible(t *testing.T) {
	st := newStore(t)

	doc, err := st.CreateDocument(model.Document{Filename: "visible.txt"})
	require.NoError(t, err)

	// A read right after the write must observe it, cache notwithstanding.
	docs, err := st.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}
