// Package model defines the records shared by the store, the chunker, the
// task queue and the HTTP surface.
package model

import "time"

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// Document is one uploaded file. Its id doubles as the stem of the chunk
// shard filename under data/chunks/.
type Document struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	FileType       string         `json:"fileType"`
	FileSize       int64          `json:"fileSize"`
	Category       string         `json:"category,omitempty"`
	ContentPreview string         `json:"contentPreview,omitempty"`
	UploadedAt     time.Time      `json:"uploadedAt"`
	Status         DocumentStatus `json:"status"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	UserID         string         `json:"userId,omitempty"`
}

// ChunkType distinguishes the two levels of the chunk index.
type ChunkType string

const (
	ChunkParent ChunkType = "parent"
	ChunkChild  ChunkType = "child"
)

// ChunkMetadata is the tagged form of the chunker's per-chunk annotations.
// Unknown fields from older shards are preserved in Extra.
type ChunkMetadata struct {
	Breadcrumbs   []string          `json:"breadcrumbs,omitempty"`
	Header        string            `json:"header,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	SegmentIndex  int               `json:"segmentIndex,omitempty"`
	TotalSegments int               `json:"totalSegments,omitempty"`
	ChildIndex    int               `json:"childIndex,omitempty"`
	TotalChildren int               `json:"totalChildren,omitempty"`
	IsCodeBlock   bool              `json:"isCodeBlock,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Chunk is a retrieval-sized span of document text. Children are the
// retrieval units; parents are context-expansion targets and are not
// required to carry embeddings.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	Content    string        `json:"content"`
	ChunkIndex int           `json:"chunkIndex"`
	TokenCount int           `json:"tokenCount"`
	ChunkType  ChunkType     `json:"chunkType"`
	ParentID   string        `json:"parentId,omitempty"`
	Embedding  []float64     `json:"embedding,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// HasEmbedding reports whether the chunk carries a non-empty vector.
func (c *Chunk) HasEmbedding() bool { return len(c.Embedding) > 0 }

// ChunkStats summarizes one document's shard.
type ChunkStats struct {
	Total              int `json:"total"`
	ParentCount        int `json:"parentCount"`
	ChildCount         int `json:"childCount"`
	WithEmbedding      int `json:"withEmbedding"`
	RequiringEmbedding int `json:"requiringEmbedding"`
}

// TaskType enumerates the background job kinds.
type TaskType string

const TaskGenerateEmbeddings TaskType = "generate_embeddings"

// TaskStatus tracks a background task. Completed and failed are terminal.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskResult records the embedding worker's final verified counts.
type TaskResult struct {
	SuccessCount int `json:"successCount"`
	FailCount    int `json:"failCount"`
	ActualSaved  int `json:"actualSaved"`
	ActualTotal  int `json:"actualTotal"`
}

// Task lives only in process memory; it is never persisted.
type Task struct {
	ID         string      `json:"id"`
	Type       TaskType    `json:"type"`
	DocumentID string      `json:"documentId"`
	Status     TaskStatus  `json:"status"`
	Total      int         `json:"total"`
	Current    int         `json:"current"`
	Progress   int         `json:"progress"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Error      string      `json:"error,omitempty"`
	Result     *TaskResult `json:"result,omitempty"`
}

// Settings is the flat settings blob stored in data/settings.json.
type Settings struct {
	APIKeys        map[string]string `json:"apiKeys,omitempty"`
	EmbeddingModel string            `json:"embeddingModel,omitempty"`
	SearchLimit    int               `json:"searchLimit,omitempty"`
}

// Category is a user-defined document grouping.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueryLog records one search request for the dashboard.
type QueryLog struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"resultCount"`
	DurationMs  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}
