package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/dto"
	"github.com/paleon-app/paleon-backend/internal/api/model"
)

// Content types.
const (
	ContentTypeGuide    = "guide"
	ContentTypeDeepDive = "deep_dive"
)

// ContentHandler handles guides and deep dives.
type ContentHandler struct {
	logger *slog.Logger
	store  ContentStore
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(deps *Dependencies) *ContentHandler {
	return &ContentHandler{
		logger: deps.Logger,
		store:  deps.Storage,
	}
}

// Create handles POST /content/create.
func (h *ContentHandler) Create(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if req.Type != ContentTypeGuide && req.Type != ContentTypeDeepDive {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "type must be guide or deep_dive"})
		return
	}

	content := model.Content{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		AuthorID:    userID,
		ImageURL:    nullStringPtr(req.ImageURL),
		Duration:    nullStringPtr(req.Duration),
		Level:       nullStringPtr(req.Level),
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.store.CreateContent(c.Request.Context(), &content); err != nil {
		h.logger.Error("Failed to create content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create content"})
		return
	}

	h.logger.Info("Content created",
		slog.Int64("content_id", content.ID),
		slog.String("type", content.Type),
		slog.String("author_id", userID),
	)

	c.JSON(http.StatusCreated, gin.H{"success": true, "content": contentDTO(&content)})
}

// ListAll handles GET /content/all.
func (h *ContentHandler) ListAll(c *gin.Context) {
	h.list(c, "")
}

// ListGuides handles GET /content/guides.
func (h *ContentHandler) ListGuides(c *gin.Context) {
	h.list(c, ContentTypeGuide)
}

// ListDeepDives handles GET /content/deep-dives.
func (h *ContentHandler) ListDeepDives(c *gin.Context) {
	h.list(c, ContentTypeDeepDive)
}

func (h *ContentHandler) list(c *gin.Context, contentType string) {
	entries, err := h.store.ListContent(c.Request.Context(), contentType)
	if err != nil {
		h.logger.Error("Failed to list content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list content"})
		return
	}

	out := make([]gin.H, len(entries))
	for i := range entries {
		out[i] = contentDTO(&entries[i])
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "content": out})
}

// Update handles PUT /content/:id. Only the author may update an entry.
func (h *ContentHandler) Update(c *gin.Context) {
	userID := c.GetString("user_id")

	contentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "id must be an integer"})
		return
	}

	var req dto.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	existing, err := h.store.GetContentByID(c.Request.Context(), contentID)
	if errors.Is(err, domain.ErrContentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Content not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update content"})
		return
	}
	if existing.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Content belongs to another author"})
		return
	}

	content := model.Content{
		ID:          contentID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		ImageURL:    nullStringPtr(req.ImageURL),
		Duration:    nullStringPtr(req.Duration),
		Level:       nullStringPtr(req.Level),
	}

	if err := h.store.UpdateContent(c.Request.Context(), &content); err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Content not found"})
			return
		}
		h.logger.Error("Failed to update content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update content"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles DELETE /content/:id. Only the author may delete an entry.
func (h *ContentHandler) Delete(c *gin.Context) {
	userID := c.GetString("user_id")

	contentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "id must be an integer"})
		return
	}

	existing, err := h.store.GetContentByID(c.Request.Context(), contentID)
	if errors.Is(err, domain.ErrContentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Content not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete content"})
		return
	}
	if existing.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Content belongs to another author"})
		return
	}

	if err := h.store.DeleteContent(c.Request.Context(), contentID); err != nil {
		h.logger.Error("Failed to delete content", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete content"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RecordVisit handles POST /content/visit.
func (h *ContentHandler) RecordVisit(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.RecordVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if err := h.store.RecordVisit(c.Request.Context(), userID, req.LessonID); err != nil {
		h.logger.Error("Failed to record visit", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to record visit"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RecordRead handles POST /content/read.
func (h *ContentHandler) RecordRead(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.RecordReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if err := h.store.RecordRead(c.Request.Context(), userID, req.ArticleID); err != nil {
		h.logger.Error("Failed to record read", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to record read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func contentDTO(content *model.Content) gin.H {
	out := gin.H{
		"id":          content.ID,
		"title":       content.Title,
		"description": content.Description,
		"type":        content.Type,
		"author_id":   content.AuthorID,
		"created_at":  content.CreatedAt.Format(time.RFC3339),
	}
	if content.ImageURL.Valid {
		out["image_url"] = content.ImageURL.String
	}
	if content.Duration.Valid {
		out["duration"] = content.Duration.String
	}
	if content.Level.Valid {
		out["level"] = content.Level.String
	}
	return out
}
