package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paleon-app/paleon-backend/internal/api/dto"
	"github.com/paleon-app/paleon-backend/internal/api/model"
)

// FossilHandler handles the fossil catalogue and discovery tracking.
type FossilHandler struct {
	logger *slog.Logger
	store  FossilStore
}

// NewFossilHandler creates a FossilHandler.
func NewFossilHandler(deps *Dependencies) *FossilHandler {
	return &FossilHandler{
		logger: deps.Logger,
		store:  deps.Storage,
	}
}

// Create handles POST /fossils/create. Fossil names are shared across users;
// submitting an existing name returns the existing entry.
func (h *FossilHandler) Create(c *gin.Context) {
	var req dto.CreateFossilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	fossil := model.Fossil{
		Name:     req.Name,
		Species:  nullStringPtr(req.Species),
		Location: nullStringPtr(req.Location),
		Age:      nullFloatPtr(req.Age),
		Images:   nullStringPtr(req.Images),
	}

	created, err := h.store.CreateOrGetFossil(c.Request.Context(), &fossil)
	if err != nil {
		h.logger.Error("Failed to create fossil", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create fossil"})
		return
	}

	if created {
		h.logger.Info("Fossil created",
			slog.Int64("fossil_id", fossil.ID),
			slog.String("name", fossil.Name),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"created": created,
		"fossil":  fossilDTO(&fossil),
	})
}

// ListAll handles GET /fossils/all.
func (h *FossilHandler) ListAll(c *gin.Context) {
	fossils, err := h.store.ListFossils(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list fossils", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list fossils"})
		return
	}

	out := make([]gin.H, len(fossils))
	for i := range fossils {
		out[i] = fossilDTO(&fossils[i])
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "fossils": out})
}

// RecordFound handles POST /fossils/found.
func (h *FossilHandler) RecordFound(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.RecordFoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if err := h.store.RecordFound(c.Request.Context(), userID, req.FossilName); err != nil {
		h.logger.Error("Failed to record found fossil", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to record found fossil"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MyFossils handles GET /fossils/my-fossils.
func (h *FossilHandler) MyFossils(c *gin.Context) {
	userID := c.GetString("user_id")

	records, err := h.store.ListUserFossils(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user fossils", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list user fossils"})
		return
	}

	out := make([]gin.H, len(records))
	for i, rec := range records {
		out[i] = gin.H{"name": rec.Name, "times": rec.Times}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "fossils": out})
}

func fossilDTO(fossil *model.Fossil) gin.H {
	out := gin.H{
		"id":   fossil.ID,
		"name": fossil.Name,
	}
	if fossil.Species.Valid {
		out["species"] = fossil.Species.String
	}
	if fossil.Location.Valid {
		out["location"] = fossil.Location.String
	}
	if fossil.Age.Valid {
		out["age"] = fossil.Age.Float64
	}
	if fossil.Images.Valid {
		out["images"] = fossil.Images.String
	}
	return out
}
