package handler

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/paleon-app/paleon-backend/internal/api/model"
	"github.com/paleon-app/paleon-backend/internal/api/storage"
	"github.com/paleon-app/paleon-backend/internal/auth"
	"github.com/paleon-app/paleon-backend/internal/ratelimit"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobStore is the subset of storage the classification handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.ClassificationJob) error
	GetJobByID(ctx context.Context, jobID string) (*model.ClassificationJob, error)
	ListUserJobs(ctx context.Context, userID string, limit int) ([]model.ClassificationJob, error)
	MarkJobFailed(ctx context.Context, jobID, errorMessage string) error
}

// Publisher hands task messages to the queue.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, headers amqp.Table) error
}

// RateLimiter decides admission and consumes quota in one step.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, userID, tier string) (bool, ratelimit.Info)
}

// UserStore is the subset of storage the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeys(ctx context.Context, userID string) ([]model.APIKey, error)
}

// ContentStore is the subset of storage the content handlers need.
type ContentStore interface {
	CreateContent(ctx context.Context, content *model.Content) error
	GetContentByID(ctx context.Context, contentID int64) (*model.Content, error)
	ListContent(ctx context.Context, contentType string) ([]model.Content, error)
	UpdateContent(ctx context.Context, content *model.Content) error
	DeleteContent(ctx context.Context, contentID int64) error
	RecordVisit(ctx context.Context, userID string, contentID int64) error
	RecordRead(ctx context.Context, userID string, contentID int64) error
}

// FossilStore is the subset of storage the fossil handlers need.
type FossilStore interface {
	CreateOrGetFossil(ctx context.Context, fossil *model.Fossil) (bool, error)
	ListFossils(ctx context.Context) ([]model.Fossil, error)
	RecordFound(ctx context.Context, userID, fossilName string) error
	ListUserFossils(ctx context.Context, userID string) ([]model.FoundRecord, error)
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Logger    *slog.Logger
	Storage   *storage.Storage
	Publisher Publisher
	Limiter   RateLimiter
	Tokens    *auth.TokenIssuer
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
