// Package ingest is the upload pipeline: validate, register the document,
// then extract, chunk and embed in the background.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/chunking"
	"github.com/hsn0918/netkb/internal/config"
	"github.com/hsn0918/netkb/internal/extract"
	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
	"github.com/hsn0918/netkb/internal/tasks"
	"github.com/hsn0918/netkb/pkg/textutil"
)

const previewBytes = 500

// ErrUnsupportedType rejects uploads outside the format whitelist.
type ErrUnsupportedType struct {
	Ext string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("ingest: unsupported file type %q", e.Ext)
}

// Orchestrator wires the upload flow end to end.
type Orchestrator struct {
	store     *store.Store
	extractor *extract.Registry
	queue     *tasks.Queue
	chunking  config.ChunkingConfig
	log       *zap.Logger
}

// New creates the orchestrator.
func New(st *store.Store, ex *extract.Registry, q *tasks.Queue, chunkCfg config.ChunkingConfig, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     st,
		extractor: ex,
		queue:     q,
		chunking:  chunkCfg,
		log:       log,
	}
}

// Upload validates the file, registers a processing document and kicks off
// the background pipeline. The returned document is the immediate reply;
// callers poll its status afterwards.
func (o *Orchestrator) Upload(ctx context.Context, filename, userID, category string, data []byte) (*model.Document, error) {
	filename = RepairFilename(filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !o.extractor.Supported(ext) {
		return nil, &ErrUnsupportedType{Ext: ext}
	}

	doc, err := o.store.CreateDocument(model.Document{
		Filename: filename,
		FileType: ext,
		FileSize: int64(len(data)),
		Category: category,
		UserID:   userID,
		Status:   model.DocumentProcessing,
	})
	if err != nil {
		return nil, err
	}

	go o.process(context.WithoutCancel(ctx), doc.ID, ext, data)
	return doc, nil
}

// process runs extraction, chunking and embedding for one document and
// records the terminal status on the document itself.
func (o *Orchestrator) process(ctx context.Context, docID, ext string, data []byte) {
	log := o.log.With(zap.String("documentId", docID))

	failWith := func(msg string, err error) {
		log.Error(msg, zap.Error(err))
		detail := msg
		if err != nil {
			detail = fmt.Sprintf("%s: %v", msg, err)
		}
		if _, uerr := o.store.UpdateDocument(docID, func(d *model.Document) {
			d.Status = model.DocumentError
			d.ErrorMessage = detail
		}); uerr != nil {
			log.Error("status update failed", zap.Error(uerr))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			failWith("ingestion panicked", fmt.Errorf("%v", r))
		}
	}()

	text, err := o.extractor.Extract(ctx, ext, data)
	if err != nil {
		failWith("text extraction failed", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		failWith("extracted text is empty", nil)
		return
	}

	chunker, err := chunking.New(o.chunkConfig(len(text)))
	if err != nil {
		failWith("chunker configuration invalid", err)
		return
	}
	chunks := chunker.Chunk(docID, text)
	if len(chunks) == 0 {
		failWith("chunking produced no chunks", nil)
		return
	}
	if _, err := o.store.CreateChunks(chunks); err != nil {
		failWith("chunk persistence failed", err)
		return
	}
	log.Info("document chunked",
		zap.Int("chunks", len(chunks)), zap.Int("textBytes", len(text)))

	if _, err := o.store.UpdateDocument(docID, func(d *model.Document) {
		d.ContentPreview = textutil.Preview(text, previewBytes)
	}); err != nil {
		log.Warn("preview update failed", zap.Error(err))
	}

	task := o.queue.Create(docID)
	done := o.queue.Run(ctx, task.ID)

	if done.Status != model.TaskCompleted {
		failWith("embedding generation failed", fmt.Errorf("%s", done.Error))
		return
	}
	if _, err := o.store.UpdateDocument(docID, func(d *model.Document) {
		d.Status = model.DocumentReady
		d.ErrorMessage = ""
	}); err != nil {
		log.Error("status update failed", zap.Error(err))
	}
	log.Info("document ready")
}

// chunkConfig picks size targets by extracted-text length. Large documents
// get coarser chunks to keep shard files manageable.
func (o *Orchestrator) chunkConfig(textBytes int) chunking.Config {
	cfg := chunking.Config{
		MaxChunkSize: o.chunking.MaxChunkSize,
		ParentSize:   o.chunking.ParentSize,
		ChildSize:    o.chunking.ChildSize,
	}
	if textBytes > o.chunking.LargeDocBytes {
		cfg.ParentSize = o.chunking.LargeParentSize
		cfg.ChildSize = o.chunking.LargeChildSize
	}
	return cfg
}

// RepairFilename undoes Latin-1 mangling of CJK filenames: multipart
// metadata decoded byte-per-rune is re-read as UTF-8 and kept when the
// result contains CJK characters.
func RepairFilename(filename string) string {
	mangled := false
	for _, r := range filename {
		if r > 0xff {
			return filename
		}
		if r > 0x7f {
			mangled = true
		}
	}
	if !mangled {
		return filename
	}

	raw := make([]byte, 0, len(filename))
	for _, r := range filename {
		raw = append(raw, byte(r))
	}
	if utf8.Valid(raw) && textutil.ContainsCJK(string(raw)) {
		return string(raw)
	}
	return filename
}
