package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paleon-app/paleon-backend/internal/api/model"
)

// CreateOrGetFossil inserts a fossil entry or returns the existing one with
// the same name.
func (s *Storage) CreateOrGetFossil(ctx context.Context, fossil *model.Fossil) (created bool, err error) {
	insert := `
		INSERT INTO fossils (name, species, location, age, images)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`

	err = s.db.QueryRowContext(
		ctx,
		insert,
		fossil.Name,
		fossil.Species,
		fossil.Location,
		fossil.Age,
		fossil.Images,
	).Scan(&fossil.ID)

	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to create fossil: %w", err)
	}

	// Name already taken, load the existing entry.
	existing, err := s.getFossilByName(ctx, fossil.Name)
	if err != nil {
		return false, err
	}
	*fossil = *existing

	return false, nil
}

func (s *Storage) getFossilByName(ctx context.Context, name string) (*model.Fossil, error) {
	var fossil model.Fossil
	query := `
		SELECT id, name, species, location, age, images
		FROM fossils
		WHERE name = $1
	`

	err := s.db.GetContext(ctx, &fossil, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get fossil: %w", err)
	}

	return &fossil, nil
}

func (s *Storage) ListFossils(ctx context.Context) ([]model.Fossil, error) {
	query := `
		SELECT id, name, species, location, age, images
		FROM fossils
		ORDER BY name
	`

	fossils := []model.Fossil{}
	err := s.db.SelectContext(ctx, &fossils, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list fossils: %w", err)
	}

	return fossils, nil
}

// RecordFound increments how many times the user has found the named fossil.
func (s *Storage) RecordFound(ctx context.Context, userID, fossilName string) error {
	query := `
		INSERT INTO found (user_id, name, times)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, name)
		DO UPDATE SET times = found.times + 1
	`

	if _, err := s.db.ExecContext(ctx, query, userID, fossilName); err != nil {
		return fmt.Errorf("failed to record found fossil: %w", err)
	}

	return nil
}

// ListUserFossils returns the user's discovery records.
func (s *Storage) ListUserFossils(ctx context.Context, userID string) ([]model.FoundRecord, error) {
	query := `
		SELECT user_id, name, times
		FROM found
		WHERE user_id = $1
		ORDER BY name
	`

	records := []model.FoundRecord{}
	err := s.db.SelectContext(ctx, &records, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user fossils: %w", err)
	}

	return records, nil
}
