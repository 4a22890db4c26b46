// Package tasks drives background embedding generation: an in-memory task
// registry, the batched embedding worker and restart recovery.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
)

// maxTasks bounds the registry. When full, the oldest terminal-or-not task
// is evicted; running workers keep their own task pointer and are unaffected.
const maxTasks = 100

// Embedder is the provider surface the worker needs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFactory resolves a ready-to-use embedder, or an error when no API
// key is configured. Resolution happens per task so key changes in the
// settings blob take effect without a restart.
type EmbedderFactory func() (Embedder, error)

// Queue is the in-memory task registry. Tasks are never persisted; a
// restart loses them and recovery regenerates the missing data instead.
type Queue struct {
	mu    sync.Mutex
	tasks map[string]*model.Task

	store   *store.Store
	factory EmbedderFactory
	log     *zap.Logger
}

// NewQueue creates an empty task registry.
func NewQueue(st *store.Store, factory EmbedderFactory, log *zap.Logger) *Queue {
	return &Queue{
		tasks:   make(map[string]*model.Task),
		store:   st,
		factory: factory,
		log:     log,
	}
}

// Create registers a pending embedding task for the document and returns a
// snapshot of it. The worker is not started.
func (q *Queue) Create(docID string) model.Task {
	now := time.Now().UTC()
	task := &model.Task{
		ID:         uuid.NewString(),
		Type:       model.TaskGenerateEmbeddings,
		DocumentID: docID,
		Status:     model.TaskPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) >= maxTasks {
		q.evictOldestLocked()
	}
	q.tasks[task.ID] = task
	return *task
}

// Get returns a snapshot of the task, or false.
func (q *Queue) Get(id string) (model.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return *task, true
}

// ListByDocument returns snapshots of the document's tasks, newest first.
func (q *Queue) ListByDocument(docID string) []model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.Task
	for _, task := range q.tasks {
		if task.DocumentID == docID {
			out = append(out, *task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Start launches the worker for a previously created task.
func (q *Queue) Start(ctx context.Context, taskID string) {
	if task := q.lookup(taskID); task != nil {
		go q.run(ctx, task)
	}
}

// Run executes the worker synchronously and returns the terminal snapshot.
// The ingestion orchestrator awaits completion this way. The worker mutates
// its own task pointer, so eviction from a full registry mid-run cannot
// lose the terminal state.
func (q *Queue) Run(ctx context.Context, taskID string) model.Task {
	task := q.lookup(taskID)
	if task == nil {
		return model.Task{}
	}
	q.run(ctx, task)
	return q.snapshot(task)
}

func (q *Queue) lookup(id string) *model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[id]
}

func (q *Queue) snapshot(task *model.Task) model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *task
}

func (q *Queue) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, task := range q.tasks {
		if oldestID == "" || task.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = task.CreatedAt
		}
	}
	if oldestID != "" {
		delete(q.tasks, oldestID)
	}
}

// update applies a mutation to the task under the registry lock. The worker
// is the only writer for its own task; going through its pointer keeps the
// mutation effective even after the registry evicted the entry.
func (q *Queue) update(task *model.Task, mutate func(*model.Task)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	mutate(task)
	task.UpdatedAt = time.Now().UTC()
}
