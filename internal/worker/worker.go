package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paleon-app/paleon-backend/internal/classifier"
	"github.com/paleon-app/paleon-backend/internal/config"
	"github.com/paleon-app/paleon-backend/internal/worker/domain"
	"github.com/paleon-app/paleon-backend/shared/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobStore is the worker's view of the job table.
type JobStore interface {
	MarkProcessing(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, result map[string]interface{}, processingTime time.Duration) error
	FailJob(ctx context.Context, jobID, errorMessage string, processingTime time.Duration) error
	ReapStaleJobs(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Requeuer schedules a task for delayed redelivery.
type Requeuer interface {
	PublishDelayed(ctx context.Context, body []byte, headers amqp.Table) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Storage       JobStore
	RabbitClient  *rabbitmq.Client
	Classifier    classifier.Classifier
	Concurrency   int
	PrefetchCount int
	MaxAttempts   int
	HardTimeLimit time.Duration
	SoftTimeLimit time.Duration
	TempDir       string
	ReapInterval  time.Duration
	StaleAge      time.Duration
}

// FromAppConfig builds a worker Config from the application config.
func FromAppConfig(cfg *config.Config, logger *slog.Logger, store JobStore, rabbit *rabbitmq.Client, cls classifier.Classifier) *Config {
	return &Config{
		Logger:        logger,
		Storage:       store,
		RabbitClient:  rabbit,
		Classifier:    cls,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		HardTimeLimit: cfg.Worker.HardTimeLimit,
		SoftTimeLimit: cfg.Worker.SoftTimeLimit,
		TempDir:       cfg.Worker.TempDir,
		ReapInterval:  cfg.Worker.ReapInterval,
		StaleAge:      cfg.Worker.StaleAge,
	}
}

// Worker consumes classification tasks and runs them through the classifier.
type Worker struct {
	logger        *slog.Logger
	storage       JobStore
	rabbitClient  *rabbitmq.Client
	requeuer      Requeuer
	classifier    classifier.Classifier
	workerID      string
	concurrency   int
	prefetchCount int
	maxAttempts   int
	hardTimeLimit time.Duration
	softTimeLimit time.Duration
	tempDir       string
	reapInterval  time.Duration
	staleAge      time.Duration
	jobsChan      chan *domain.Delivery
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		storage:       cfg.Storage,
		rabbitClient:  cfg.RabbitClient,
		requeuer:      cfg.RabbitClient,
		classifier:    cfg.Classifier,
		workerID:      fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		maxAttempts:   cfg.MaxAttempts,
		hardTimeLimit: cfg.HardTimeLimit,
		softTimeLimit: cfg.SoftTimeLimit,
		tempDir:       cfg.TempDir,
		reapInterval:  cfg.ReapInterval,
		staleAge:      cfg.StaleAge,
		jobsChan:      make(chan *domain.Delivery),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing tasks. Blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("classifier", w.classifier.Name()),
		slog.Int("concurrency", w.concurrency),
		slog.Int("max_attempts", w.maxAttempts),
		slog.Duration("hard_time_limit", w.hardTimeLimit),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	if w.reapInterval > 0 {
		w.wg.Add(1)
		go w.reapLoop(ctx)
	}

	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
