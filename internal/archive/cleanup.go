package archive

import (
	"context"
	"fmt"
	"time"
)

// cleanupBatchSize bounds how many archives one sweep touches.
const cleanupBatchSize = 100

// CleanupExpiredArchives deletes completed archives older than the retention
// window. The object is deleted before the row: if the row delete fails, the
// next sweep retries harmlessly (store deletes are idempotent), whereas the
// reverse order could orphan objects forever.
func (w *Worker) CleanupExpiredArchives(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	expired, err := w.jobs.ListExpired(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired archives: %w", err)
	}

	deleted := 0
	for _, e := range expired {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		if e.StoragePath != "" {
			if err := w.archiveStore.Delete(ctx, e.StoragePath); err != nil {
				w.logger.Error("failed to delete expired archive object",
					"job_id", e.JobID,
					"storage_path", e.StoragePath,
					"error", err,
				)
				continue
			}
		}

		if err := w.jobs.Delete(ctx, e.JobID); err != nil {
			w.logger.Error("failed to delete expired archive row",
				"job_id", e.JobID,
				"error", err,
			)
			continue
		}

		deleted++
	}

	if deleted > 0 {
		w.logger.Info("expired archives purged", "count", deleted)
	}

	return deleted, nil
}
