package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/paleon-app/paleon-backend/internal/imaging"
	"github.com/paleon-app/paleon-backend/internal/worker/domain"
)

// processTask runs one classification task end to end: claim the job, stage
// the images, classify, write the terminal outcome. The returned error type
// drives settlement: nil and terminal errors settle the message for good, a
// RetryableError schedules a delayed redelivery.
func (w *Worker) processTask(ctx context.Context, d *domain.Delivery) error {
	msg := d.Message
	start := time.Now()

	w.logger.Info("Processing classification task",
		slog.String("job_id", msg.JobID),
		slog.String("request_id", msg.RequestID),
		slog.Int("attempt", d.Attempts),
		slog.Int("image_count", len(msg.Images)),
	)

	err := w.storage.MarkProcessing(ctx, msg.JobID)
	if errors.Is(err, domain.ErrJobAlreadyDone) {
		// Redelivery of a settled job. The first delivery's outcome stands.
		w.logger.Warn("Skipping task for job already in terminal state",
			slog.String("job_id", msg.JobID),
		)
		return nil
	}
	if errors.Is(err, domain.ErrJobNotFound) {
		w.logger.Error("Task references unknown job, dropping",
			slog.String("job_id", msg.JobID),
		)
		return fmt.Errorf("%w: job %s", domain.ErrInvalidPayload, msg.JobID)
	}
	if err != nil {
		// Transient database failure, worth another delivery.
		return domain.NewRetryableError(fmt.Errorf("failed to mark job processing: %w", err))
	}

	paths, err := w.stageImages(msg.JobID, msg.Images)
	defer imaging.Cleanup(paths)
	if err != nil {
		// One bad image fails the whole batch; a corrupt payload will not
		// improve on retry.
		w.failJob(ctx, msg.JobID, err.Error(), time.Since(start))
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.hardTimeLimit)
	defer cancel()

	softDone := make(chan struct{})
	go w.watchSoftLimit(jobCtx, msg.JobID, softDone)
	defer close(softDone)

	result, err := w.classifier.Classify(jobCtx, paths)
	elapsed := time.Since(start)

	if err != nil {
		if d.Attempts >= w.maxAttempts {
			w.logger.Warn("Task exhausted its attempts",
				slog.String("job_id", msg.JobID),
				slog.Int("attempts", d.Attempts),
			)
			w.failJob(ctx, msg.JobID, err.Error(), elapsed)
			return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, err)
		}
		// Leave the job in processing; a later attempt writes the outcome.
		return domain.NewRetryableError(fmt.Errorf("classification failed: %w", err))
	}

	if err := w.storage.CompleteJob(ctx, msg.JobID, result, elapsed); err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to record result: %w", err))
	}

	w.logger.Info("Classification task completed",
		slog.String("job_id", msg.JobID),
		slog.String("request_id", msg.RequestID),
		slog.Duration("elapsed", elapsed),
	)

	return nil
}

// stageImages decodes the base64 payloads and writes them to per-job temp
// files for the classifier. Returns the paths written so far even on error so
// the caller can clean up.
func (w *Worker) stageImages(jobID string, images []string) ([]string, error) {
	dir := filepath.Join(w.tempDir, jobID)
	paths := make([]string, 0, len(images))

	for i, encoded := range images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return paths, fmt.Errorf("image %d is not valid base64", i)
		}

		format, err := imaging.Validate(data)
		if err != nil {
			return paths, fmt.Errorf("image %d is not a valid image", i)
		}

		path, err := imaging.SaveTemp(dir, fmt.Sprintf("image_%d.%s", i, format), data)
		if err != nil {
			return paths, fmt.Errorf("failed to stage image %d: %v", i, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// watchSoftLimit logs a warning when a task runs past the soft time limit.
// The hard limit on the context is what actually stops it.
func (w *Worker) watchSoftLimit(ctx context.Context, jobID string, done <-chan struct{}) {
	if w.softTimeLimit <= 0 {
		return
	}

	timer := time.NewTimer(w.softTimeLimit)
	defer timer.Stop()

	select {
	case <-done:
	case <-ctx.Done():
	case <-timer.C:
		w.logger.Warn("Task running past soft time limit",
			slog.String("job_id", jobID),
			slog.Duration("soft_time_limit", w.softTimeLimit),
		)
	}
}

func (w *Worker) failJob(ctx context.Context, jobID, errorMessage string, elapsed time.Duration) {
	if err := w.storage.FailJob(ctx, jobID, errorMessage, elapsed); err != nil {
		w.logger.Error("Failed to record job failure",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
