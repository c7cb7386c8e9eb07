package domain

import "errors"

var (
	// ErrJobNotFound is returned when a task references a job with no record
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyDone is returned when a redelivered task targets a job
	// that already reached a terminal state
	ErrJobAlreadyDone = errors.New("job already in terminal state")

	// ErrInvalidPayload is returned when the task body or an image inside it
	// cannot be decoded
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrMaxAttemptsExceeded is returned when a task has used up its attempts
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
)

// RetryableError wraps transient failures that warrant a delayed redelivery
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
