package domain

import "github.com/paleon-app/paleon-backend/internal/task"

// Classification job statuses as stored in classification_jobs. These must
// match what the API service writes and reads.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// Delivery is one task pulled off the queue, ready for a worker goroutine.
// Body keeps the raw message so a retry republishes the exact same payload.
type Delivery struct {
	Message     task.Message
	Body        []byte
	DeliveryTag uint64
	// Attempts counts deliveries of this task including the current one.
	Attempts int
}
