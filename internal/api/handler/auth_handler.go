package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paleon-app/paleon-backend/internal/api/domain"
	"github.com/paleon-app/paleon-backend/internal/api/dto"
	"github.com/paleon-app/paleon-backend/internal/api/model"
	"github.com/paleon-app/paleon-backend/internal/auth"
)

// AuthHandler handles registration, login and API key management.
type AuthHandler struct {
	logger *slog.Logger
	store  UserStore
	tokens *auth.TokenIssuer
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger: deps.Logger,
		store:  deps.Storage,
		tokens: deps.Tokens,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if len(req.Password) < auth.MinPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Password must be at least 8 characters",
		})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Registration failed"})
		return
	}

	user := model.User{
		UserID:         uuid.New().String(),
		Email:          req.Email,
		Name:           req.Username,
		HashedPassword: nullString(hashed),
		Tier:           "free",
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"detail": "Email already registered"})
			return
		}
		h.logger.Error("Failed to create user", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Registration failed"})
		return
	}

	h.logger.Info("User registered",
		slog.String("user_id", user.UserID),
		slog.String("email", user.Email),
	)

	h.issueToken(c, http.StatusCreated, &user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get user", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Login failed"})
		return
	}

	if !user.HashedPassword.Valid || !auth.VerifyPassword(req.Password, user.HashedPassword.String) {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
		return
	}

	h.issueToken(c, http.StatusOK, user)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get user", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to get user"})
		return
	}

	c.JSON(http.StatusOK, userDTO(user))
}

// CreateAPIKey handles POST /auth/api-keys. The plain key appears in this
// response and nowhere else.
func (h *AuthHandler) CreateAPIKey(c *gin.Context) {
	userID := c.GetString("user_id")

	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	plainKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("Failed to generate API key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create API key"})
		return
	}

	key := model.APIKey{
		UserID:    userID,
		KeyHash:   auth.HashAPIKey(plainKey),
		Name:      req.Name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateAPIKey(c.Request.Context(), &key); err != nil {
		h.logger.Error("Failed to create API key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create API key"})
		return
	}

	resp := apiKeyDTO(&key)
	resp.Key = plainKey
	c.JSON(http.StatusOK, resp)
}

// ListAPIKeys handles GET /auth/api-keys. Hashes never leave storage.
func (h *AuthHandler) ListAPIKeys(c *gin.Context) {
	userID := c.GetString("user_id")

	keys, err := h.store.ListAPIKeys(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list API keys", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list API keys"})
		return
	}

	out := make([]dto.APIKeyResponse, len(keys))
	for i := range keys {
		out[i] = apiKeyDTO(&keys[i])
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "api_keys": out})
}

func (h *AuthHandler) issueToken(c *gin.Context, status int, user *model.User) {
	token, err := h.tokens.Issue(user.UserID, user.Email, user.Tier)
	if err != nil {
		h.logger.Error("Failed to issue token", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to issue token"})
		return
	}

	c.JSON(status, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userDTO(user),
	})
}

func userDTO(user *model.User) dto.UserResponse {
	out := dto.UserResponse{
		UserID:    user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		Tier:      user.Tier,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.Bio.Valid {
		out.Bio = &user.Bio.String
	}
	if user.Avatar.Valid {
		out.Avatar = &user.Avatar.String
	}
	return out
}

func apiKeyDTO(key *model.APIKey) dto.APIKeyResponse {
	out := dto.APIKeyResponse{
		ID:        key.ID,
		UserID:    key.UserID,
		Name:      key.Name,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt.Format(time.RFC3339),
	}
	if key.LastUsedAt.Valid {
		used := key.LastUsedAt.Time.Format(time.RFC3339)
		out.LastUsedAt = &used
	}
	return out
}
