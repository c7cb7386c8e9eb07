package worker

import (
	"context"
	"log/slog"
	"time"
)

// reapLoop periodically fails jobs stuck in processing longer than the stale
// age. Covers workers that died after claiming a task: the message was acked
// or lost, so no redelivery will ever settle the record.
func (w *Worker) reapLoop(ctx context.Context) {
	defer w.wg.Done()

	w.logger.Info("Stale job reaper started",
		slog.Duration("interval", w.reapInterval),
		slog.Duration("stale_age", w.staleAge),
	)

	ticker := time.NewTicker(w.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.storage.ReapStaleJobs(ctx, w.staleAge); err != nil {
				w.logger.Error("Failed to reap stale jobs",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
