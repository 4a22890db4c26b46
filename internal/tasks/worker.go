package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
	"github.com/hsn0918/netkb/internal/store"
	"github.com/hsn0918/netkb/pkg/textutil"
)

const (
	// microBatchSize is the number of concurrent provider calls per batch.
	microBatchSize = 5
	// flushThreshold is the pending-buffer size that triggers a shard write.
	flushThreshold = 10
	// maxInputRunes truncates chunk content before embedding to respect
	// provider input limits.
	maxInputRunes = 2000
	// interBatchSleep paces batches against provider rate limits.
	interBatchSleep = 200 * time.Millisecond
)

// run drives one embedding task to a terminal state. A panic anywhere in
// the pipeline marks the task failed instead of killing the process.
func (q *Queue) run(ctx context.Context, task *model.Task) {
	docID := task.DocumentID
	log := q.log.With(zap.String("taskId", task.ID), zap.String("documentId", docID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("embedding worker panicked", zap.Any("panic", r))
			q.update(task, func(t *model.Task) {
				t.Status = model.TaskFailed
				t.Error = fmt.Sprintf("worker panic: %v", r)
			})
		}
	}()

	pending, err := q.store.PendingEmbeddings(docID)
	if err != nil {
		q.fail(task, fmt.Errorf("read work list: %w", err))
		return
	}

	q.update(task, func(t *model.Task) {
		t.Status = model.TaskProcessing
		t.Total = len(pending)
	})

	if len(pending) == 0 {
		q.update(task, func(t *model.Task) {
			t.Status = model.TaskCompleted
			t.Progress = 100
			t.Result = &model.TaskResult{}
		})
		return
	}

	embedder, err := q.factory()
	if err != nil {
		q.fail(task, fmt.Errorf("no embedding provider: %w", err))
		return
	}

	log.Info("embedding task started", zap.Int("chunks", len(pending)))

	var (
		buffer  []store.EmbeddingUpdate
		success int
		failed  int
	)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := q.flushBuffer(docID, buffer, log); err != nil {
			log.Warn("buffer flush failed", zap.Error(err))
		}
		buffer = buffer[:0]
	}

	for start := 0; start < len(pending); start += microBatchSize {
		end := start + microBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		results := embedBatch(ctx, embedder, batch)
		for _, r := range results {
			if r.err != nil {
				failed++
				log.Warn("chunk embedding failed",
					zap.String("chunkId", r.chunkID), zap.Error(r.err))
				continue
			}
			success++
			buffer = append(buffer, store.EmbeddingUpdate{ChunkID: r.chunkID, Embedding: r.vector})
		}

		if len(buffer) >= flushThreshold || end == len(pending) {
			flush()
		}

		q.update(task, func(t *model.Task) {
			t.Current = end
			t.Progress = end * 100 / len(pending)
		})

		if end < len(pending) {
			time.Sleep(interBatchSleep)
		}
	}

	// Re-read the shard so the result reports what actually landed, not
	// what the worker believes it wrote.
	stats, err := q.store.GetChunkStats(docID)
	result := model.TaskResult{SuccessCount: success, FailCount: failed}
	if err == nil {
		result.ActualSaved = stats.WithEmbedding
		result.ActualTotal = stats.WithEmbedding + stats.RequiringEmbedding
	}

	q.update(task, func(t *model.Task) {
		t.Status = model.TaskCompleted
		t.Progress = 100
		t.Result = &result
	})
	log.Info("embedding task completed",
		zap.Int("success", success), zap.Int("failed", failed),
		zap.Int("actualSaved", result.ActualSaved))
}

type embedResult struct {
	chunkID string
	vector  []float64
	err     error
}

// embedBatch fires the batch's provider calls concurrently and joins them.
// Per-chunk failures (including 429) are isolated into the result slice.
func embedBatch(ctx context.Context, embedder Embedder, batch []model.Chunk) []embedResult {
	results := make([]embedResult, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chunk := &batch[i]
			input := textutil.CompressWhitespace(textutil.TruncateRunes(chunk.Content, maxInputRunes))
			vec, err := embedder.EmbedText(ctx, input)
			results[i] = embedResult{chunkID: chunk.ID, vector: vec, err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// flushBuffer writes the pending pairs through the single-shard fast path,
// falling back to per-chunk writes when the batch write fails.
func (q *Queue) flushBuffer(docID string, buffer []store.EmbeddingUpdate, log *zap.Logger) error {
	_, err := q.store.UpdateChunkEmbeddings(buffer, docID)
	if err == nil {
		return nil
	}
	log.Warn("batch embedding write failed, retrying per chunk", zap.Error(err))
	for _, u := range buffer {
		if _, perr := q.store.UpdateChunkEmbedding(u.ChunkID, u.Embedding); perr != nil {
			return perr
		}
	}
	return nil
}

func (q *Queue) fail(task *model.Task, err error) {
	q.log.Error("embedding task failed", zap.String("taskId", task.ID), zap.Error(err))
	q.update(task, func(t *model.Task) {
		t.Status = model.TaskFailed
		t.Error = err.Error()
	})
}
