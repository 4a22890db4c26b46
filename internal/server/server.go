// Package server exposes the knowledge-base REST surface and wires the
// application together for the fx runtime.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hsn0918/netkb/internal/clients/openai"
	"github.com/hsn0918/netkb/internal/config"
	"github.com/hsn0918/netkb/internal/ingest"
	"github.com/hsn0918/netkb/internal/search"
	"github.com/hsn0918/netkb/internal/store"
	"github.com/hsn0918/netkb/internal/tasks"
)

// Upload limits. Multipart parts beyond the memory limit spill to disk; the
// body reader rejects anything past the hard cap.
const (
	maxMultipartMemory = 50 << 20
	maxUploadBytes     = 100 << 20
)

// Server carries the handler dependencies.
type Server struct {
	store        *store.Store
	engine       *search.Engine
	queue        *tasks.Queue
	orchestrator *ingest.Orchestrator
	llm          openai.ChatCompleter
	cfg          *config.Config
	log          *zap.Logger
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithChat attaches a chat provider for the grounded-answer endpoint.
func WithChat(llm openai.ChatCompleter) Option {
	return func(s *Server) { s.llm = llm }
}

// New creates the handler set.
func New(st *store.Store, eng *search.Engine, q *tasks.Queue, orch *ingest.Orchestrator, cfg *config.Config, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		store:        st,
		engine:       eng,
		queue:        q,
		orchestrator: orch,
		cfg:          cfg,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with the full route table.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(corsMiddleware(), recoveryMiddleware(s.log))

	api := r.Group("/api")
	{
		docs := api.Group("/documents")
		docs.POST("/upload", s.uploadDocument)
		docs.GET("", s.listDocuments)
		docs.GET("/:id", s.getDocument)
		docs.PUT("/:id", s.updateDocument)
		docs.DELETE("/:id", s.deleteDocument)
		docs.GET("/:id/chunks", s.listDocumentChunks)
		docs.GET("/:id/chunk-stats", s.getChunkStats)
		docs.POST("/:id/chunks", s.appendChunks)
		docs.POST("/:id/generate-embeddings", s.generateEmbeddings)
		docs.GET("/:id/tasks", s.listDocumentTasks)

		chunks := api.Group("/chunks")
		chunks.GET("", s.listAllChunks)
		chunks.GET("/search", s.searchChunks)
		chunks.POST("/vector-search", s.vectorSearchChunks)
		chunks.POST("/ask", s.askChunks)
		chunks.PUT("/:id/embedding", s.updateChunkEmbedding)

		api.GET("/tasks/:id", s.getTask)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.GET("/categories", s.listCategories)
		api.POST("/categories", s.createCategory)
		api.DELETE("/categories/:id", s.deleteCategory)

		api.GET("/query-logs", s.listQueryLogs)
	}
	return r
}

// HTTPServer wraps the router in an h2c-capable http.Server.
func (s *Server) HTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(s.Router(), &http2.Server{}),
	}
}
