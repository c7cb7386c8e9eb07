package dto

import "encoding/json"

// RateLimitInfo is quota telemetry returned alongside submissions and 429s.
// Degraded is set when the counter store was unreachable and the request was
// admitted without an authoritative count.
type RateLimitInfo struct {
	Limit     int    `json:"limit"`
	Current   int    `json:"current"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"reset_at"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// ClassifyAsyncResponse is returned by POST /classify-async/.
type ClassifyAsyncResponse struct {
	Success   bool          `json:"success"`
	JobID     string        `json:"job_id"`
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id"`
	RateLimit RateLimitInfo `json:"rate_limit"`
}

// JobResultResponse is the polling snapshot returned by GET /result/:job_id.
type JobResultResponse struct {
	Status           string          `json:"status"`
	JobID            string          `json:"job_id"`
	ImageCount       int             `json:"image_count"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            *string         `json:"error,omitempty"`
	ProcessingTimeMS *int64          `json:"processing_time_ms,omitempty"`
	CreatedAt        string          `json:"created_at"`
	CompletedAt      *string         `json:"completed_at,omitempty"`
}

// ListJobsResponse is returned by GET /jobs.
type ListJobsResponse struct {
	Success bool                `json:"success"`
	Jobs    []JobResultResponse `json:"jobs"`
}

// ==================== AUTH ====================

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	UserID    string  `json:"user_id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Tier      string  `json:"tier"`
	Bio       *string `json:"bio,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

type APIKeyResponse struct {
	ID         int64   `json:"id"`
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Key        string  `json:"key,omitempty"` // plain key, creation only
	IsActive   bool    `json:"is_active"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

// ==================== CONTENT ====================

type CreateContentRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	ImageURL    *string `json:"image_url"`
	Duration    *string `json:"duration"`
	Level       *string `json:"level"`
}

type UpdateContentRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	ImageURL    *string `json:"image_url"`
	Duration    *string `json:"duration"`
	Level       *string `json:"level"`
}

type RecordVisitRequest struct {
	LessonID int64 `json:"lesson_id" binding:"required"`
}

type RecordReadRequest struct {
	ArticleID int64 `json:"article_id" binding:"required"`
}

// ==================== FOSSILS ====================

type CreateFossilRequest struct {
	Name     string   `json:"name" binding:"required"`
	Species  *string  `json:"species"`
	Location *string  `json:"location"`
	Age      *float64 `json:"age"`
	Images   *string  `json:"images"`
}

type RecordFoundRequest struct {
	FossilName string `json:"fossil_name" binding:"required"`
}
