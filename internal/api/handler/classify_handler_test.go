package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/dto"
	"github.com/paleon-app/paleon-backend/internal/api/model"
	"github.com/paleon-app/paleon-backend/internal/ratelimit"
	"github.com/paleon-app/paleon-backend/internal/task"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	jobs       map[string]*model.ClassificationJob
	createErr  error
	failedJobs map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:       make(map[string]*model.ClassificationJob),
		failedJobs: make(map[string]string),
	}
}

func (s *fakeJobStore) CreateJob(_ context.Context, job *model.ClassificationJob) error {
	if s.createErr != nil {
		return s.createErr
	}
	copied := *job
	s.jobs[job.JobID] = &copied
	return nil
}

func (s *fakeJobStore) GetJobByID(_ context.Context, jobID string) (*model.ClassificationJob, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeJobStore) ListUserJobs(_ context.Context, userID string, limit int) ([]model.ClassificationJob, error) {
	out := []model.ClassificationJob{}
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) MarkJobFailed(_ context.Context, jobID, errorMessage string) error {
	s.failedJobs[jobID] = errorMessage
	return nil
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ amqp.Table) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

type fakeLimiter struct {
	allowed bool
	info    ratelimit.Info
	calls   int
}

func (l *fakeLimiter) CheckAndConsume(_ context.Context, _, _ string) (bool, ratelimit.Info) {
	l.calls++
	return l.allowed, l.info
}

func admittingLimiter() *fakeLimiter {
	return &fakeLimiter{
		allowed: true,
		info: ratelimit.Info{
			Limit:     11,
			Current:   1,
			Remaining: 10,
			ResetAt:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newClassifyHandler(store JobStore, pub Publisher, limiter RateLimiter) *ClassifyHandler {
	return &ClassifyHandler{
		logger:    slog.New(slog.DiscardHandler),
		store:     store,
		publisher: pub,
		limiter:   limiter,
	}
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 120, G: 80, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := w.CreateFormFile(imageFilesField, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func classifyRequest(t *testing.T, h *ClassifyHandler, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/classify-async/", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Set("user_id", "user-1")
	c.Set("tier", "free")

	h.ClassifyAsync(c)
	return rec
}

func TestClassifyAsyncSubmitsJob(t *testing.T) {
	store := newFakeJobStore()
	pub := &fakePublisher{}
	h := newClassifyHandler(store, pub, admittingLimiter())

	rec := classifyRequest(t, h, map[string][]byte{
		"front.png": encodePNG(t),
		"back.png":  encodePNG(t),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ClassifyAsyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "processing", resp.Status)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 11, resp.RateLimit.Limit)

	// Durable record exists and is pending.
	job, ok := store.jobs[resp.JobID]
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, 2, job.ImageCount)

	// Published message carries the stable payload shape.
	require.Len(t, pub.published, 1)
	var msg task.Message
	require.NoError(t, json.Unmarshal(pub.published[0], &msg))
	assert.Equal(t, resp.JobID, msg.JobID)
	assert.Equal(t, resp.RequestID, msg.RequestID)
	assert.Equal(t, "user-1", msg.UserID)
	assert.Len(t, msg.Images, 2)
}

func TestClassifyAsyncImageCountBounds(t *testing.T) {
	t.Run("zero images", func(t *testing.T) {
		h := newClassifyHandler(newFakeJobStore(), &fakePublisher{}, admittingLimiter())
		rec := classifyRequest(t, h, map[string][]byte{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many images", func(t *testing.T) {
		limiter := admittingLimiter()
		h := newClassifyHandler(newFakeJobStore(), &fakePublisher{}, limiter)

		files := map[string][]byte{}
		for i := 0; i < 6; i++ {
			files[uuid.New().String()+".png"] = encodePNG(t)
		}
		rec := classifyRequest(t, h, files)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		// Rejected submissions never consume quota.
		assert.Zero(t, limiter.calls)
	})
}

func TestClassifyAsyncRejectsNonImage(t *testing.T) {
	limiter := admittingLimiter()
	store := newFakeJobStore()
	h := newClassifyHandler(store, &fakePublisher{}, limiter)

	rec := classifyRequest(t, h, map[string][]byte{
		"real.png": encodePNG(t),
		"fake.png": []byte("definitely not an image"),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "fake.png")
	assert.Empty(t, store.jobs)
	assert.Zero(t, limiter.calls)
}

func TestClassifyAsyncRateLimited(t *testing.T) {
	limiter := &fakeLimiter{
		allowed: false,
		info: ratelimit.Info{
			Limit:     11,
			Current:   11,
			Remaining: 0,
			ResetAt:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
	}
	store := newFakeJobStore()
	pub := &fakePublisher{}
	h := newClassifyHandler(store, pub, limiter)

	rec := classifyRequest(t, h, map[string][]byte{"front.png": encodePNG(t)})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "11", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, store.jobs)
	assert.Empty(t, pub.published)
}

func TestClassifyAsyncPublishFailureFailsJob(t *testing.T) {
	store := newFakeJobStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	h := newClassifyHandler(store, pub, admittingLimiter())

	rec := classifyRequest(t, h, map[string][]byte{"front.png": encodePNG(t)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The orphaned record is failed so polling clients see a terminal state.
	require.Len(t, store.failedJobs, 1)
	for jobID := range store.failedJobs {
		_, exists := store.jobs[jobID]
		assert.True(t, exists)
	}
}

func resultRequest(h *ClassifyHandler, jobID, userID string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/result/"+jobID, nil)
	c.Params = gin.Params{{Key: "job_id", Value: jobID}}
	c.Set("user_id", userID)
	h.GetResult(c)
	return rec
}

func TestGetResult(t *testing.T) {
	store := newFakeJobStore()
	jobID := uuid.New().String()
	store.jobs[jobID] = &model.ClassificationJob{
		JobID:            jobID,
		UserID:           "user-1",
		Status:           domain.JobStatusComplete,
		ImageCount:       1,
		Result:           json.RawMessage(`{"classification":"body_fossil"}`),
		ProcessingTimeMS: sql.NullInt64{Int64: 1500, Valid: true},
		CreatedAt:        time.Now().UTC(),
		CompletedAt:      sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}
	h := newClassifyHandler(store, &fakePublisher{}, admittingLimiter())

	t.Run("owner sees snapshot", func(t *testing.T) {
		rec := resultRequest(h, jobID, "user-1")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.JobResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.JobStatusComplete, resp.Status)
		assert.NotNil(t, resp.ProcessingTimeMS)
		assert.JSONEq(t, `{"classification":"body_fossil"}`, string(resp.Result))
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := resultRequest(h, uuid.New().String(), "user-1")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other user's job", func(t *testing.T) {
		rec := resultRequest(h, jobID, "user-2")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed job id", func(t *testing.T) {
		rec := resultRequest(h, "not-a-uuid", "user-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListJobs(t *testing.T) {
	store := newFakeJobStore()
	for i := 0; i < 3; i++ {
		jobID := uuid.New().String()
		store.jobs[jobID] = &model.ClassificationJob{
			JobID:      jobID,
			UserID:     "user-1",
			Status:     domain.JobStatusPending,
			ImageCount: 1,
			CreatedAt:  time.Now().UTC(),
		}
	}
	h := newClassifyHandler(store, &fakePublisher{}, admittingLimiter())

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/jobs?limit=2", nil)
	c.Set("user_id", "user-1")

	h.ListJobs(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ListJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Jobs, 2)
}

func TestListJobsBadLimit(t *testing.T) {
	h := newClassifyHandler(newFakeJobStore(), &fakePublisher{}, admittingLimiter())

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/jobs?limit=banana", nil)
	c.Set("user_id", "user-1")

	h.ListJobs(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
