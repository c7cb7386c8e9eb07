package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/model"
)

const uniqueViolation = "23505"

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO user_profile (
			user_id, email, name, hashed_password, tier, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		user.UserID,
		user.Email,
		user.Name,
		user.HashedPassword,
		user.Tier,
		user.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `
		SELECT user_id, email, name, hashed_password, tier, bio, avatar, created_at
		FROM user_profile
		WHERE email = $1
	`

	err := s.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	query := `
		SELECT user_id, email, name, hashed_password, tier, bio, avatar, created_at
		FROM user_profile
		WHERE user_id = $1
	`

	err := s.db.GetContext(ctx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *Storage) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (user_id, key_hash, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		key.UserID,
		key.KeyHash,
		key.Name,
		key.IsActive,
		key.CreatedAt,
	).Scan(&key.ID)

	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

func (s *Storage) ListAPIKeys(ctx context.Context, userID string) ([]model.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, name, is_active, created_at, last_used_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	keys := []model.APIKey{}
	err := s.db.SelectContext(ctx, &keys, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	return keys, nil
}

// GetUserByAPIKeyHash resolves an active API key to its owner and stamps
// last_used_at.
func (s *Storage) GetUserByAPIKeyHash(ctx context.Context, keyHash string) (*model.User, error) {
	var userID string
	query := `
		UPDATE api_keys
		SET last_used_at = $2
		WHERE key_hash = $1 AND is_active
		RETURNING user_id
	`

	err := s.db.QueryRowContext(ctx, query, keyHash, time.Now().UTC()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve api key: %w", err)
	}

	return s.GetUserByID(ctx, userID)
}
