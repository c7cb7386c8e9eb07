package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/model"
	"github.com/paleon-app/paleon-backend/shared/postgresql"
)

const DefaultJobListLimit = 20

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob records a pending classification job. Written before the task is
// published so a job visible on the queue always has a durable record.
func (s *Storage) CreateJob(ctx context.Context, job *model.ClassificationJob) error {
	query := `
		INSERT INTO classification_jobs (
			job_id, user_id, status, image_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.Status,
		job.ImageCount,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.ClassificationJob, error) {
	var job model.ClassificationJob
	query := `
		SELECT
			job_id, user_id, status, image_count,
			result, error_message, processing_time_ms,
			created_at, completed_at
		FROM classification_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListUserJobs returns the user's jobs, most recent first.
func (s *Storage) ListUserJobs(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error) {
	if limit <= 0 {
		limit = DefaultJobListLimit
	}

	query := `
		SELECT
			job_id, user_id, status, image_count,
			result, error_message, processing_time_ms,
			created_at, completed_at
		FROM classification_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, job_id DESC
		LIMIT $2
	`

	jobs := []model.ClassificationJob{}
	err := s.db.SelectContext(ctx, &jobs, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// MarkJobFailed writes a terminal failure from the API side, used when the
// task could not be handed to the queue.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID, errorMessage string) error {
	query := `
		UPDATE classification_jobs
		SET status = $2, error_message = $3, completed_at = $4
		WHERE job_id = $1
	`

	_, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusFailed, errorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return nil
}
