package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/dto"
	"github.com/paleon-app/paleon-backend/internal/api/model"
	"github.com/paleon-app/paleon-backend/internal/imaging"
	"github.com/paleon-app/paleon-backend/internal/ratelimit"
	"github.com/paleon-app/paleon-backend/internal/task"
)

const (
	imageFilesField = "image_files"
	maxListLimit    = 50

	// Guards against oversized uploads before the body is read into memory.
	maxUploadBytes = 32 << 20
)

// ClassifyHandler handles classification submission and polling.
type ClassifyHandler struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
	limiter   RateLimiter
}

// NewClassifyHandler creates a ClassifyHandler.
func NewClassifyHandler(deps *Dependencies) *ClassifyHandler {
	return &ClassifyHandler{
		logger:    deps.Logger,
		store:     deps.Storage,
		publisher: deps.Publisher,
		limiter:   deps.Limiter,
	}
}

// ClassifyAsync handles POST /classify-async/. The job record is written
// before the task is published; a submission visible on the queue always has
// a pollable record.
func (h *ClassifyHandler) ClassifyAsync(c *gin.Context) {
	userID := c.GetString("user_id")
	tier := c.GetString("tier")
	requestID := uuid.New().String()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid multipart form"})
		return
	}

	files := form.File[imageFilesField]
	if len(files) < domain.MinImagesPerJob || len(files) > domain.MaxImagesPerJob {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("Expected between %d and %d image files, got %d",
				domain.MinImagesPerJob, domain.MaxImagesPerJob, len(files)),
		})
		return
	}

	encoded, err := readAndValidateImages(files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	allowed, info := h.limiter.CheckAndConsume(c.Request.Context(), userID, tier)
	setRateLimitHeaders(c, info)
	if !allowed {
		h.logger.Warn("Rate limit exceeded",
			slog.String("user_id", userID),
			slog.String("tier", tier),
			slog.Int("limit", info.Limit),
		)
		c.JSON(http.StatusTooManyRequests, gin.H{
			"detail":     fmt.Sprintf("Daily limit of %d classifications reached", info.Limit),
			"rate_limit": rateLimitDTO(info),
		})
		return
	}

	job := model.ClassificationJob{
		JobID:      uuid.New().String(),
		UserID:     userID,
		Status:     domain.JobStatusPending,
		ImageCount: len(encoded),
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create job"})
		return
	}

	body, err := json.Marshal(task.Message{
		Images:    encoded,
		RequestID: requestID,
		JobID:     job.JobID,
		UserID:    userID,
	})
	if err != nil {
		h.logger.Error("Failed to encode task", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to submit job"})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, nil); err != nil {
		h.logger.Error("Failed to publish task",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		// The record exists but no worker will ever pick it up; fail it so
		// polling clients see a terminal state instead of eternal pending.
		if markErr := h.store.MarkJobFailed(c.Request.Context(), job.JobID, "failed to enqueue task"); markErr != nil {
			h.logger.Error("Failed to mark job failed",
				slog.String("job_id", job.JobID),
				slog.String("error", markErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to submit job"})
		return
	}

	h.logger.Info("Classification job submitted",
		slog.String("job_id", job.JobID),
		slog.String("request_id", requestID),
		slog.String("user_id", userID),
		slog.Int("image_count", job.ImageCount),
	)

	c.JSON(http.StatusOK, dto.ClassifyAsyncResponse{
		Success:   true,
		JobID:     job.JobID,
		Status:    "processing",
		Message:   "Classification started. Poll /result/{job_id} for the result.",
		RequestID: requestID,
		RateLimit: rateLimitDTO(info),
	})
}

// GetResult handles GET /result/:job_id. Returns the current job snapshot;
// polling a pending or processing job is the normal case, not an error.
func (h *ClassifyHandler) GetResult(c *gin.Context) {
	userID := c.GetString("user_id")
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "job_id must be a valid UUID"})
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get job"})
		return
	}

	if job.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Job belongs to another user"})
		return
	}

	c.JSON(http.StatusOK, jobDTO(job))
}

// ListJobs handles GET /jobs. Returns the caller's jobs, most recent first.
func (h *ClassifyHandler) ListJobs(c *gin.Context) {
	userID := c.GetString("user_id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := h.store.ListUserJobs(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list jobs"})
		return
	}

	out := make([]dto.JobResultResponse, len(jobs))
	for i := range jobs {
		out[i] = jobDTO(&jobs[i])
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Success: true, Jobs: out})
}

func readAndValidateImages(files []*multipart.FileHeader) ([]string, error) {
	encoded := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", fh.Filename)
		}

		if _, err := imaging.Validate(data); err != nil {
			return nil, fmt.Errorf("%s is not a valid image", fh.Filename)
		}

		encoded = append(encoded, base64.StdEncoding.EncodeToString(data))
	}
	return encoded, nil
}

func setRateLimitHeaders(c *gin.Context, info ratelimit.Info) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	c.Header("X-RateLimit-Current", strconv.Itoa(info.Current))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	c.Header("X-RateLimit-Reset", info.ResetAt.Format(time.RFC3339))
}

func rateLimitDTO(info ratelimit.Info) dto.RateLimitInfo {
	return dto.RateLimitInfo{
		Limit:     info.Limit,
		Current:   info.Current,
		Remaining: info.Remaining,
		ResetAt:   info.ResetAt.Format(time.RFC3339),
		Degraded:  info.Degraded,
	}
}

func jobDTO(job *model.ClassificationJob) dto.JobResultResponse {
	out := dto.JobResultResponse{
		Status:     job.Status,
		JobID:      job.JobID,
		ImageCount: job.ImageCount,
		Result:     job.Result,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}
	if job.ErrorMessage.Valid {
		out.Error = &job.ErrorMessage.String
	}
	if job.ProcessingTimeMS.Valid {
		out.ProcessingTimeMS = &job.ProcessingTimeMS.Int64
	}
	if job.CompletedAt.Valid {
		completed := job.CompletedAt.Time.Format(time.RFC3339)
		out.CompletedAt = &completed
	}
	return out
}
