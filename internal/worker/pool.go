package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paleon-app/paleon-backend/internal/task"
	"github.com/paleon-app/paleon-backend/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case d, ok := <-w.jobsChan:
			if !ok {
				return
			}

			w.logger.Info("Worker received task",
				slog.String("worker_name", workerName),
				slog.String("job_id", d.Message.JobID),
				slog.Int("attempts", d.Attempts),
			)

			err := w.processTask(ctx, d)
			w.settleDelivery(ctx, workerName, d, err)
		}
	}
}

// settleDelivery acks or nacks the delivery and schedules a retry when the
// processing error is transient. Retries go through the delay queue as fresh
// messages; the original delivery is always settled here.
func (w *Worker) settleDelivery(ctx context.Context, workerName string, d *domain.Delivery, procErr error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
		)
		return
	}

	var retryable *domain.RetryableError
	if errors.As(procErr, &retryable) {
		headers := amqp.Table{task.AttemptsHeader: int32(d.Attempts + 1)}
		if pubErr := w.requeuer.PublishDelayed(ctx, d.Body, headers); pubErr != nil {
			w.logger.Error("Failed to schedule retry, requeueing delivery",
				slog.String("job_id", d.Message.JobID),
				slog.String("error", pubErr.Error()),
			)
			// Could not schedule the delayed copy; put the original back so
			// the task is not lost.
			if nackErr := channel.Nack(d.DeliveryTag, false, true); nackErr != nil {
				w.logger.Error("Failed to NACK message",
					slog.String("job_id", d.Message.JobID),
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}

		w.logger.Info("Task retry scheduled",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.Int("next_attempt", d.Attempts+1),
			slog.String("error", procErr.Error()),
		)

		if ackErr := channel.Ack(d.DeliveryTag, false); ackErr != nil {
			w.logger.Error("Failed to ACK message after scheduling retry",
				slog.String("job_id", d.Message.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	if procErr != nil {
		// Terminal failure: the outcome is already recorded in the job table,
		// the message has nothing left to offer.
		w.logger.Error("Task processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.String("error", procErr.Error()),
		)
	}

	if ackErr := channel.Ack(d.DeliveryTag, false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", d.Message.JobID),
			slog.String("error", ackErr.Error()),
		)
	}
}
