// Package task defines the queue message exchanged between the API service
// and the worker service. The wire shape is a stable boundary; the two
// binaries deploy independently.
package task

// Message is one classification task. Images travel base64-encoded inside the
// message body rather than by reference, so the worker needs no access to the
// API service's filesystem.
type Message struct {
	Images    []string `json:"images"`
	RequestID string   `json:"request_id"`
	JobID     string   `json:"job_id"`
	UserID    string   `json:"user_id"`
}

// AttemptsHeader carries the delivery attempt count across requeues.
const AttemptsHeader = "x-attempts"
