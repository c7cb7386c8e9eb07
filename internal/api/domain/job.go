package domain

import (
	"errors"
)

// Classification job statuses. pending -> processing -> {complete, failed};
// complete and failed are terminal.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// Image count bounds for a single classification request.
const (
	MinImagesPerJob = 1
	MaxImagesPerJob = 5
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNotJobOwner     = errors.New("job belongs to another user")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrContentNotFound = errors.New("content not found")
	ErrNotAuthor       = errors.New("content belongs to another author")
)
