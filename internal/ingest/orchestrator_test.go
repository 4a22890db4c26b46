package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/config"
	"github.com/hsn0918/netkb/internal/extract"
	"github.com/hsn0918/netkb/internal/ingest"
	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
	"github.com/hsn0918/netkb/internal/tasks"
)

type unitEmbedder struct{}

func (unitEmbedder) EmbedText(context.Context, string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func chunkDefaults() config.ChunkingConfig {
	return config.ChunkingConfig{
		MaxChunkSize:    4000,
		ParentSize:      2000,
		ChildSize:       600,
		LargeParentSize: 3000,
		LargeChildSize:  800,
		LargeDocBytes:   500 * 1024,
	}
}

func newOrchestrator(t *testing.T, factory tasks.EmbedderFactory) (*store.Store, *ingest.Orchestrator) {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	q := tasks.NewQueue(st, factory, zap.NewNop())
	orch := ingest.New(st, extract.NewRegistry(nil), q, chunkDefaults(), zap.NewNop())
	return st, orch
}

func okFactory() (tasks.Embedder, error) { return unitEmbedder{}, nil }

func waitForTerminalStatus(t *testing.T, st *store.Store, docID string) model.Document {
	t.Helper()
	var doc model.Document
	require.Eventually(t, func() bool {
		got, err := st.GetDocument(docID)
		if err != nil || got == nil {
			return false
		}
		doc = *got
		return doc.Status != model.DocumentProcessing
	}, 10*time.Second, 20*time.Millisecond)
	return doc
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	_, orch := newOrchestrator(t, okFactory)

	_, err := orch.Upload(context.Background(), "firmware.bin", "", "", []byte("junk"))
	var unsupported *ingest.ErrUnsupportedType
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "bin", unsupported.Ext)
}

func TestUpload_EndToEndMarkdown(t *testing.T) {
	st, orch := newOrchestrator(t, okFactory)

	text := `# Bond Configuration

nv set interface bond0 bond member swp1-2
nv config apply

## Verification

Run the show commands to confirm member state.
`
	doc, err := orch.Upload(context.Background(), "bond-guide.md", "user-1", "runbooks", []byte(text))
	require.NoError(t, err)
	assert.Equal(t, model.DocumentProcessing, doc.Status)
	assert.Equal(t, "md", doc.FileType)
	assert.Equal(t, "runbooks", doc.Category)

	final := waitForTerminalStatus(t, st, doc.ID)
	assert.Equal(t, model.DocumentReady, final.Status)
	assert.NotEmpty(t, final.ContentPreview)

	chunks, err := st.GetChunks(doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	stats, err := st.GetChunkStats(doc.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.RequiringEmbedding, "all retrieval units embedded")
	assert.Positive(t, stats.WithEmbedding)
}

func TestUpload_EmptyTextMarksError(t *testing.T) {
	st, orch := newOrchestrator(t, okFactory)

	doc, err := orch.Upload(context.Background(), "blank.txt", "", "", []byte("   \n  "))
	require.NoError(t, err)

	final := waitForTerminalStatus(t, st, doc.ID)
	assert.Equal(t, model.DocumentError, final.Status)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestUpload_MissingAPIKeyMarksError(t *testing.T) {
	st, orch := newOrchestrator(t, func() (tasks.Embedder, error) {
		return nil, errors.New("embedding API key not configured")
	})

	doc, err := orch.Upload(context.Background(), "notes.txt", "", "", []byte("some real content here"))
	require.NoError(t, err)

	final := waitForTerminalStatus(t, st, doc.ID)
	assert.Equal(t, model.DocumentError, final.Status)
	assert.Contains(t, final.ErrorMessage, "embedding")
}

func TestUpload_BinaryWithoutParserMarksError(t *testing.T) {
	st, orch := newOrchestrator(t, okFactory)

	doc, err := orch.Upload(context.Background(), "manual.pdf", "", "", []byte("%PDF-1.4"))
	require.NoError(t, err)

	final := waitForTerminalStatus(t, st, doc.ID)
	assert.Equal(t, model.DocumentError, final.Status)
}

func TestRepairFilename(t *testing.T) {
	// "配置.md" encoded UTF-8 then misread as Latin-1.
	mangled := string([]rune{0xe9, 0x85, 0x8d, 0xe7, 0xbd, 0xae}) + ".md"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii untouched", "guide.md", "guide.md"},
		{"proper cjk untouched", "配置.md", "配置.md"},
		{"latin1 mangled cjk repaired", mangled, "配置.md"},
		{"latin1 non-cjk kept", "café.md", "café.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ingest.RepairFilename(tt.in))
		})
	}
}
