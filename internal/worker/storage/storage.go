package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paleon-app/paleon-backend/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// MarkProcessing moves a job to processing. Redeliveries of a job already in
// processing are allowed through; jobs already terminal return
// ErrJobAlreadyDone so the duplicate can be acked without another write.
func (s *Storage) MarkProcessing(ctx context.Context, jobID string) error {
	query := `
		UPDATE classification_jobs
		SET status = $2, processing_started_at = NOW()
		WHERE job_id = $1 AND status IN ($3, $2)
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	if rows == 0 {
		var status string
		err := s.db.GetContext(ctx, &status, `SELECT status FROM classification_jobs WHERE job_id = $1`, jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to mark job processing: %w", err)
		}
		return domain.ErrJobAlreadyDone
	}

	return nil
}

// CompleteJob writes the terminal success state. Jobs already terminal are
// left untouched; redelivered tasks must not overwrite a recorded outcome.
func (s *Storage) CompleteJob(ctx context.Context, jobID string, result map[string]interface{}, processingTime time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE classification_jobs
		SET status = $2,
			result = $3,
			error_message = NULL,
			processing_time_ms = $4,
			completed_at = NOW()
		WHERE job_id = $1 AND status NOT IN ($2, $5)
	`

	_, err = s.db.ExecContext(ctx, query, jobID, domain.JobStatusComplete, resultJSON, processingTime.Milliseconds(), domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.Int64("processing_time_ms", processingTime.Milliseconds()),
	)

	return nil
}

// FailJob writes the terminal failure state. The result column stays NULL;
// a failed job never carries a partial result.
func (s *Storage) FailJob(ctx context.Context, jobID, errorMessage string, processingTime time.Duration) error {
	query := `
		UPDATE classification_jobs
		SET status = $2,
			result = NULL,
			error_message = $3,
			processing_time_ms = $4,
			completed_at = NOW()
		WHERE job_id = $1 AND status NOT IN ($2, $5)
	`

	_, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusFailed, errorMessage, processingTime.Milliseconds(), domain.JobStatusComplete)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	s.logger.Info("Job failed",
		slog.String("job_id", jobID),
		slog.String("error", errorMessage),
	)

	return nil
}

// ReapStaleJobs fails jobs stuck in processing longer than maxAge. Covers
// workers that died between claiming a task and writing its outcome.
func (s *Storage) ReapStaleJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE classification_jobs
		SET status = $1,
			error_message = 'processing timed out',
			completed_at = NOW()
		WHERE status = $2
		  AND processing_started_at < NOW() - $3 * INTERVAL '1 second'
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, domain.JobStatusProcessing, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}

	if rows > 0 {
		s.logger.Warn("Reaped stale jobs", slog.Int64("count", rows))
	}

	return rows, nil
}
