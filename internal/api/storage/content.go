package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/model"
)

func (s *Storage) CreateContent(ctx context.Context, content *model.Content) error {
	query := `
		INSERT INTO content (title, description, type, author_id, image_url, duration, level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		content.Title,
		content.Description,
		content.Type,
		content.AuthorID,
		content.ImageURL,
		content.Duration,
		content.Level,
		content.CreatedAt,
	).Scan(&content.ID)

	if err != nil {
		return fmt.Errorf("failed to create content: %w", err)
	}

	return nil
}

func (s *Storage) GetContentByID(ctx context.Context, contentID int64) (*model.Content, error) {
	var content model.Content
	query := `
		SELECT id, title, description, type, author_id, image_url, duration, level, created_at
		FROM content
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &content, query, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return &content, nil
}

// ListContent returns entries newest first. An empty contentType returns all
// types.
func (s *Storage) ListContent(ctx context.Context, contentType string) ([]model.Content, error) {
	query := `
		SELECT id, title, description, type, author_id, image_url, duration, level, created_at
		FROM content
	`
	args := []interface{}{}

	if contentType != "" {
		query += " WHERE type = $1"
		args = append(args, contentType)
	}
	query += " ORDER BY created_at DESC"

	entries := []model.Content{}
	err := s.db.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	return entries, nil
}

// UpdateContent overwrites the mutable fields of an entry.
func (s *Storage) UpdateContent(ctx context.Context, content *model.Content) error {
	query := `
		UPDATE content
		SET title = $2, description = $3, type = $4, image_url = $5, duration = $6, level = $7
		WHERE id = $1
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		content.ID,
		content.Title,
		content.Description,
		content.Type,
		content.ImageURL,
		content.Duration,
		content.Level,
	)
	if err != nil {
		return fmt.Errorf("failed to update content: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update content: %w", err)
	}
	if rows == 0 {
		return domain.ErrContentNotFound
	}

	return nil
}

func (s *Storage) DeleteContent(ctx context.Context, contentID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE id = $1`, contentID)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	if rows == 0 {
		return domain.ErrContentNotFound
	}

	return nil
}

// RecordVisit increments the visit counter, creating the record on first
// visit.
func (s *Storage) RecordVisit(ctx context.Context, userID string, contentID int64) error {
	query := `
		INSERT INTO visited (user_id, content_id, times)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, content_id)
		DO UPDATE SET times = visited.times + 1
	`

	if _, err := s.db.ExecContext(ctx, query, userID, contentID); err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}

	return nil
}

// RecordRead increments the read counter, creating the record on first read.
func (s *Storage) RecordRead(ctx context.Context, userID string, contentID int64) error {
	query := `
		INSERT INTO read (user_id, content_id, times)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, content_id)
		DO UPDATE SET times = read.times + 1
	`

	if _, err := s.db.ExecContext(ctx, query, userID, contentID); err != nil {
		return fmt.Errorf("failed to record read: %w", err)
	}

	return nil
}
