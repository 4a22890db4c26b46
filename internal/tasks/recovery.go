package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hsn0918/netkb/internal/model"
)

// recoveryDelay gives the server time to finish startup before the scan.
const recoveryDelay = 5 * time.Second

// RecoverStalled scans, after a short delay, for documents stuck in
// processing whose shards still miss embeddings, and re-runs the pipeline
// for them. In-flight tasks from a previous run are not restored; the data
// they were producing is regenerated instead.
func (q *Queue) RecoverStalled(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(recoveryDelay):
		}
		q.recoverNow(ctx)
	}()
}

func (q *Queue) recoverNow(ctx context.Context) {
	docs, err := q.store.ListDocuments()
	if err != nil {
		q.log.Error("recovery scan failed", zap.Error(err))
		return
	}

	for _, doc := range docs {
		if doc.Status != model.DocumentProcessing {
			continue
		}
		stats, err := q.store.GetChunkStats(doc.ID)
		if err != nil {
			q.log.Warn("recovery stats read failed",
				zap.String("documentId", doc.ID), zap.Error(err))
			continue
		}
		if stats.RequiringEmbedding == 0 {
			continue
		}

		q.log.Info("recovering stalled embedding work",
			zap.String("documentId", doc.ID),
			zap.Int("missing", stats.RequiringEmbedding))

		task := q.Create(doc.ID)
		done := q.Run(ctx, task.ID)

		status := model.DocumentReady
		if done.Status != model.TaskCompleted {
			status = model.DocumentError
		}
		if _, err := q.store.UpdateDocument(doc.ID, func(d *model.Document) {
			d.Status = status
			d.ErrorMessage = done.Error
		}); err != nil {
			q.log.Warn("recovery status update failed",
				zap.String("documentId", doc.ID), zap.Error(err))
		}
	}
}
