package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
)

// EmbeddingUpdate pairs a chunk id with its freshly generated vector.
type EmbeddingUpdate struct {
	ChunkID   string
	Embedding []float64
}

// UpdateResult reports how many embedding updates landed.
type UpdateResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// loadChunks reads a shard from disk, bypassing the cache.
func (s *Store) loadChunks(docID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := s.readArray(s.shardPath(docID), &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunks returns all chunks of the document. A missing shard reads as
// empty, never as an error.
func (s *Store) GetChunks(docID string) ([]model.Chunk, error) {
	path := s.shardPath(docID)
	if v, ok := s.cache.get(path); ok {
		if chunks, ok := v.([]model.Chunk); ok {
			return chunks, nil
		}
	}
	chunks, err := s.loadChunks(docID)
	if err != nil {
		return nil, err
	}
	s.cache.put(path, chunks)
	return chunks, nil
}

// GetChunk returns one chunk of the document, or nil.
func (s *Store) GetChunk(docID, chunkID string) (*model.Chunk, error) {
	chunks, err := s.GetChunks(docID)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].ID == chunkID {
			c := chunks[i]
			return &c, nil
		}
	}
	return nil, nil
}

// CreateChunks persists the given chunks, assigning ids and creation times
// where missing. The list may span documents; each affected shard is
// appended to under its own write lock.
func (s *Store) CreateChunks(chunks []model.Chunk) ([]model.Chunk, error) {
	now := time.Now().UTC()
	byDoc := make(map[string][]model.Chunk)
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}

	out := make([]model.Chunk, 0, len(chunks))
	for docID, added := range byDoc {
		path := s.shardPath(docID)
		release := s.locks.acquire(path)

		existing, err := s.loadChunks(docID)
		if err != nil {
			release()
			return nil, err
		}
		existing = append(existing, added...)
		if err := s.writeChunks(docID, existing); err != nil {
			release()
			return nil, err
		}
		release()
		out = append(out, added...)
	}
	return out, nil
}

// UpdateChunkEmbedding sets the embedding of a single chunk whose document
// is unknown. This is the slow path: it scans every shard file until the id
// is found. It reports whether the chunk existed.
func (s *Store) UpdateChunkEmbedding(chunkID string, embedding []float64) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "chunks"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &StorageError{Op: "readdir", Path: s.dir, Err: err}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		docID := strings.TrimSuffix(name, ".json")
		res, err := s.UpdateChunkEmbeddings([]EmbeddingUpdate{{ChunkID: chunkID, Embedding: embedding}}, docID)
		if err != nil {
			return false, err
		}
		if res.Success > 0 {
			return true, nil
		}
	}
	return false, nil
}

// UpdateChunkEmbeddings applies a batch of embedding updates to a single
// document's shard (the fast path). Unknown ids and empty vectors count as
// failed. Writing to a vanished shard is a silent no-op: every update is
// reported failed and no file is created.
func (s *Store) UpdateChunkEmbeddings(updates []EmbeddingUpdate, docID string) (UpdateResult, error) {
	var res UpdateResult
	if len(updates) == 0 {
		return res, nil
	}

	path := s.shardPath(docID)
	release := s.locks.acquire(path)
	defer release()

	chunks, err := s.loadChunks(docID)
	if err != nil {
		return res, err
	}
	if len(chunks) == 0 {
		// Shard deleted (or never existed) while the task was running.
		res.Failed = len(updates)
		return res, nil
	}

	byID := make(map[string]int, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = i
	}

	dirty := false
	for _, u := range updates {
		idx, ok := byID[u.ChunkID]
		if !ok || len(u.Embedding) == 0 {
			res.Failed++
			continue
		}
		chunks[idx].Embedding = u.Embedding
		res.Success++
		dirty = true
	}

	if dirty {
		if err := s.writeChunks(docID, chunks); err != nil {
			return res, err
		}
	}
	return res, nil
}

// GetChunkStats summarizes the document's shard. A chunk requires an
// embedding when it is a retrieval unit: a child, or a parent without
// children.
func (s *Store) GetChunkStats(docID string) (model.ChunkStats, error) {
	chunks, err := s.GetChunks(docID)
	if err != nil {
		return model.ChunkStats{}, err
	}

	hasChildren := make(map[string]bool)
	for i := range chunks {
		if chunks[i].ChunkType == model.ChunkChild && chunks[i].ParentID != "" {
			hasChildren[chunks[i].ParentID] = true
		}
	}

	stats := model.ChunkStats{Total: len(chunks)}
	for i := range chunks {
		c := &chunks[i]
		switch c.ChunkType {
		case model.ChunkParent:
			stats.ParentCount++
		case model.ChunkChild:
			stats.ChildCount++
		}
		if c.HasEmbedding() {
			stats.WithEmbedding++
		} else if isRetrievalUnit(c, hasChildren) {
			stats.RequiringEmbedding++
		}
	}
	return stats, nil
}

// PendingEmbeddings returns the document's retrieval-unit chunks that still
// lack a vector. This is the embedding worker's work list.
func (s *Store) PendingEmbeddings(docID string) ([]model.Chunk, error) {
	chunks, err := s.GetChunks(docID)
	if err != nil {
		return nil, err
	}

	hasChildren := make(map[string]bool)
	for i := range chunks {
		if chunks[i].ChunkType == model.ChunkChild && chunks[i].ParentID != "" {
			hasChildren[chunks[i].ParentID] = true
		}
	}

	var pending []model.Chunk
	for i := range chunks {
		c := &chunks[i]
		if !c.HasEmbedding() && isRetrievalUnit(c, hasChildren) {
			pending = append(pending, *c)
		}
	}
	return pending, nil
}

// isRetrievalUnit reports whether the chunk is indexed for vector retrieval:
// children always, parents only when they have no children of their own.
func isRetrievalUnit(c *model.Chunk, hasChildren map[string]bool) bool {
	if c.ChunkType == model.ChunkChild {
		return true
	}
	return !hasChildren[c.ID]
}

func (s *Store) writeChunks(docID string, chunks []model.Chunk) error {
	path := s.shardPath(docID)
	if err := writeJSONAtomic(path, chunks); err != nil {
		return err
	}
	s.cache.put(path, chunks)
	return nil
}

// logSearch is a hook point for instrumentation of the scan paths.
func (s *Store) logSearch(kind string, scanned int) {
	s.log.Debug("shard scan complete", zap.String("kind", kind), zap.Int("chunks", scanned))
}
