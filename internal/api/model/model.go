package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ClassificationJob is the durable record of one classification request.
type ClassificationJob struct {
	JobID            string          `db:"job_id"`
	UserID           string          `db:"user_id"`
	Status           string          `db:"status"`
	ImageCount       int             `db:"image_count"`
	Result           json.RawMessage `db:"result"`
	ErrorMessage     sql.NullString  `db:"error_message"`
	ProcessingTimeMS sql.NullInt64   `db:"processing_time_ms"`
	CreatedAt        time.Time       `db:"created_at"`
	CompletedAt      sql.NullTime    `db:"completed_at"`
}

// User mirrors the user_profile table.
type User struct {
	UserID         string         `db:"user_id"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	HashedPassword sql.NullString `db:"hashed_password"`
	Tier           string         `db:"tier"`
	Bio            sql.NullString `db:"bio"`
	Avatar         sql.NullString `db:"avatar"`
	CreatedAt      time.Time      `db:"created_at"`
}

// APIKey stores a hashed API key. The plain key is shown once at creation.
type APIKey struct {
	ID         int64          `db:"id"`
	UserID     string         `db:"user_id"`
	KeyHash    string         `db:"key_hash"`
	Name       string         `db:"name"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
	LastUsedAt sql.NullTime   `db:"last_used_at"`
}

// Content is a guide or deep dive entry.
type Content struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Type        string         `db:"type"`
	AuthorID    string         `db:"author_id"`
	ImageURL    sql.NullString `db:"image_url"`
	Duration    sql.NullString `db:"duration"`
	Level       sql.NullString `db:"level"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Fossil is a catalogued fossil entry shared across users.
type Fossil struct {
	ID       int64           `db:"id"`
	Name     string          `db:"name"`
	Species  sql.NullString  `db:"species"`
	Location sql.NullString  `db:"location"`
	Age      sql.NullFloat64 `db:"age"`
	Images   sql.NullString  `db:"images"`
}

// FoundRecord counts how many times a user has found a given fossil.
type FoundRecord struct {
	UserID string `db:"user_id"`
	Name   string `db:"name"`
	Times  int    `db:"times"`
}
