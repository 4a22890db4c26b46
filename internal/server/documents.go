package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/ingest"
	"github.com/hsn0918/netkb/internal/model"
)

// uploadTimeout bounds the multipart read, not the background pipeline.
const uploadTimeout = 5 * time.Minute

// uploadDocument ingests one multipart file and replies immediately with
// the processing document.
func (s *Server) uploadDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
	defer cancel()
	c.Request = c.Request.WithContext(ctx)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing file field", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "cannot open uploaded file", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(c, http.StatusBadRequest, "cannot read uploaded file", err)
		return
	}

	doc, err := s.orchestrator.Upload(c.Request.Context(),
		fileHeader.Filename, c.PostForm("userId"), c.PostForm("category"), data)
	if err != nil {
		var unsupported *ingest.ErrUnsupportedType
		if errors.As(err, &unsupported) {
			fail(c, http.StatusBadRequest, "unsupported file type", err)
			return
		}
		fail(c, http.StatusInternalServerError, "upload failed", err)
		return
	}

	s.log.Info("document accepted",
		zap.String("documentId", doc.ID), zap.String("filename", doc.Filename))
	ok(c, gin.H{"document": doc})
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot list documents", err)
		return
	}
	ok(c, gin.H{"documents": docs})
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.store.GetDocument(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read document", err)
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}
	ok(c, gin.H{"document": doc})
}

type updateDocumentRequest struct {
	Filename *string `json:"filename"`
	Category *string `json:"category"`
}

func (s *Server) updateDocument(c *gin.Context) {
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	doc, err := s.store.UpdateDocument(c.Param("id"), func(d *model.Document) {
		if req.Filename != nil {
			d.Filename = *req.Filename
		}
		if req.Category != nil {
			d.Category = *req.Category
		}
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot update document", err)
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}
	ok(c, gin.H{"document": doc})
}

func (s *Server) deleteDocument(c *gin.Context) {
	deleted, err := s.store.DeleteDocument(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot delete document", err)
		return
	}
	if !deleted {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}
	ok(c, gin.H{"deleted": true})
}

func (s *Server) listDocumentChunks(c *gin.Context) {
	chunks, err := s.store.GetChunks(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read chunks", err)
		return
	}
	ok(c, gin.H{"chunks": chunks})
}

func (s *Server) getChunkStats(c *gin.Context) {
	stats, err := s.store.GetChunkStats(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read chunk stats", err)
		return
	}
	ok(c, gin.H{"stats": stats})
}

type appendChunksRequest struct {
	Chunks []model.Chunk `json:"chunks" binding:"required"`
}

// appendChunks adds caller-provided chunks to an existing document's shard.
func (s *Server) appendChunks(c *gin.Context) {
	docID := c.Param("id")
	doc, err := s.store.GetDocument(docID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read document", err)
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}

	var req appendChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	for i := range req.Chunks {
		req.Chunks[i].DocumentID = docID
	}

	created, err := s.store.CreateChunks(req.Chunks)
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot persist chunks", err)
		return
	}
	ok(c, gin.H{"chunks": created})
}

// generateEmbeddings creates an embedding task for the document and starts
// the worker in the background.
func (s *Server) generateEmbeddings(c *gin.Context) {
	docID := c.Param("id")
	doc, err := s.store.GetDocument(docID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read document", err)
		return
	}
	if doc == nil {
		fail(c, http.StatusNotFound, "document not found", nil)
		return
	}

	task := s.queue.Create(docID)
	s.queue.Start(context.WithoutCancel(c.Request.Context()), task.ID)
	ok(c, gin.H{"task": task})
}

func (s *Server) listDocumentTasks(c *gin.Context) {
	ok(c, gin.H{"tasks": s.queue.ListByDocument(c.Param("id"))})
}
