// Package store implements the sharded on-disk document and chunk store.
//
// Layout:
//
//	data/documents.json        array of Document records
//	data/chunks/<docID>.json   array of Chunk records for that document
//	data/settings.json         settings blob
//	data/categories.json       array of Category records
//	data/query_logs.json       array of QueryLog records
//
// Every file is written whole via temp+rename under a per-path FIFO write
// lock, so memory per operation scales with one document rather than the
// corpus. Readers are lock-free and go through a TTL cache.
package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
)

const maxQueryLogs = 1000

// Store provides durable, crash-safe access to documents and their chunks.
type Store struct {
	dir   string
	locks *pathLocks
	cache *shardCache
	log   *zap.Logger
}

// New opens (or creates) the data directory rooted at dir.
func New(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chunks"), 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	return &Store{
		dir:   dir,
		locks: newPathLocks(),
		cache: newShardCache(),
		log:   log,
	}, nil
}

func (s *Store) documentsPath() string  { return filepath.Join(s.dir, "documents.json") }
func (s *Store) settingsPath() string   { return filepath.Join(s.dir, "settings.json") }
func (s *Store) categoriesPath() string { return filepath.Join(s.dir, "categories.json") }
func (s *Store) queryLogsPath() string  { return filepath.Join(s.dir, "query_logs.json") }

func (s *Store) shardPath(docID string) string {
	return filepath.Join(s.dir, "chunks", docID+".json")
}

// readArray loads a JSON array file into out. Missing files read as empty;
// malformed JSON is logged and replaced by empty rather than cascading the
// failure upward.
func (s *Store) readArray(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &StorageError{Op: "read", Path: path, Err: err}
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		s.log.Warn("malformed JSON file, treating as empty",
			zap.String("path", path), zap.Error(err))
	}
	return nil
}

// loadDocuments reads documents.json from disk, bypassing the cache. Write
// paths use it under the per-path lock for read-modify-write cycles.
func (s *Store) loadDocuments() ([]model.Document, error) {
	var docs []model.Document
	if err := s.readArray(s.documentsPath(), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListDocuments returns all documents in insertion order.
func (s *Store) ListDocuments() ([]model.Document, error) {
	path := s.documentsPath()
	if v, ok := s.cache.get(path); ok {
		if docs, ok := v.([]model.Document); ok {
			return docs, nil
		}
	}
	docs, err := s.loadDocuments()
	if err != nil {
		return nil, err
	}
	s.cache.put(path, docs)
	return docs, nil
}

// GetDocument returns the document with the given id, or nil.
func (s *Store) GetDocument(id string) (*model.Document, error) {
	docs, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			d := docs[i]
			return &d, nil
		}
	}
	return nil, nil
}

// CreateDocument persists doc, assigning an id and upload time if missing.
func (s *Store) CreateDocument(doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = model.DocumentProcessing
	}

	path := s.documentsPath()
	release := s.locks.acquire(path)
	defer release()

	docs, err := s.loadDocuments()
	if err != nil {
		return nil, err
	}
	docs = append(docs, doc)
	if err := s.writeDocuments(docs); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocument applies patch to the stored document and returns the
// updated record, or nil if the id is unknown.
func (s *Store) UpdateDocument(id string, patch func(*model.Document)) (*model.Document, error) {
	path := s.documentsPath()
	release := s.locks.acquire(path)
	defer release()

	docs, err := s.loadDocuments()
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID != id {
			continue
		}
		patch(&docs[i])
		docs[i].ID = id // id is immutable
		if err := s.writeDocuments(docs); err != nil {
			return nil, err
		}
		d := docs[i]
		return &d, nil
	}
	return nil, nil
}

// DeleteDocument removes the document and its chunk shard. It reports
// whether the document was present.
func (s *Store) DeleteDocument(id string) (bool, error) {
	path := s.documentsPath()
	release := s.locks.acquire(path)

	docs, err := s.loadDocuments()
	if err != nil {
		release()
		return false, err
	}
	found := false
	kept := docs[:0]
	for _, d := range docs {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if found {
		if err := s.writeDocuments(kept); err != nil {
			release()
			return false, err
		}
	}
	release()

	if !found {
		return false, nil
	}

	// Cascade to the shard under its own lock.
	shard := s.shardPath(id)
	shardRelease := s.locks.acquire(shard)
	defer shardRelease()
	if err := os.Remove(shard); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, &StorageError{Op: "remove", Path: shard, Err: err}
	}
	s.cache.drop(shard)
	return true, nil
}

func (s *Store) writeDocuments(docs []model.Document) error {
	path := s.documentsPath()
	if err := writeJSONAtomic(path, docs); err != nil {
		return err
	}
	s.cache.put(path, docs)
	return nil
}

// GetSettings loads the settings blob. A missing file yields zero settings.
func (s *Store) GetSettings() (model.Settings, error) {
	var settings model.Settings
	data, err := os.ReadFile(s.settingsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return settings, &StorageError{Op: "read", Path: s.settingsPath(), Err: err}
	}
	if err := sonic.Unmarshal(data, &settings); err != nil {
		s.log.Warn("malformed settings.json, using defaults", zap.Error(err))
	}
	return settings, nil
}

// SaveSettings replaces the settings blob.
func (s *Store) SaveSettings(settings model.Settings) error {
	path := s.settingsPath()
	release := s.locks.acquire(path)
	defer release()
	return writeJSONAtomic(path, settings)
}

// ListCategories returns all categories in insertion order.
func (s *Store) ListCategories() ([]model.Category, error) {
	var cats []model.Category
	if err := s.readArray(s.categoriesPath(), &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// CreateCategory appends a category, assigning id and creation time.
func (s *Store) CreateCategory(name string) (*model.Category, error) {
	cat := model.Category{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}

	path := s.categoriesPath()
	release := s.locks.acquire(path)
	defer release()

	cats, err := s.ListCategories()
	if err != nil {
		return nil, err
	}
	cats = append(cats, cat)
	if err := writeJSONAtomic(path, cats); err != nil {
		return nil, err
	}
	return &cat, nil
}

// DeleteCategory removes a category by id and reports whether it existed.
func (s *Store) DeleteCategory(id string) (bool, error) {
	path := s.categoriesPath()
	release := s.locks.acquire(path)
	defer release()

	cats, err := s.ListCategories()
	if err != nil {
		return false, err
	}
	found := false
	kept := cats[:0]
	for _, c := range cats {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return false, nil
	}
	return true, writeJSONAtomic(path, kept)
}

// AppendQueryLog records a search request, keeping the newest maxQueryLogs.
func (s *Store) AppendQueryLog(entry model.QueryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	path := s.queryLogsPath()
	release := s.locks.acquire(path)
	defer release()

	var logs []model.QueryLog
	if err := s.readArray(path, &logs); err != nil {
		return err
	}
	logs = append(logs, entry)
	if len(logs) > maxQueryLogs {
		logs = logs[len(logs)-maxQueryLogs:]
	}
	return writeJSONAtomic(path, logs)
}

// ListQueryLogs returns the recorded search requests, newest last.
func (s *Store) ListQueryLogs() ([]model.QueryLog, error) {
	var logs []model.QueryLog
	if err := s.readArray(s.queryLogsPath(), &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
