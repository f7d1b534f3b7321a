package handlers

import (
	"log/slog"
	"net/http"

	"github.com/CodeXGautam/mail-tracker/internal/api/middleware"
	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles account lifecycle requests
type AuthHandler struct {
	users      *services.UserService
	jwtManager *middleware.JWTManager
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(users *services.UserService, jwtManager *middleware.JWTManager, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{users: users, jwtManager: jwtManager, logger: logger}
}

// RegisterRequest is the explicit registration body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AutoCreateRequest provisions an account for a detected sender address
type AutoCreateRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// UpdateProfileRequest carries optional profile fields
type UpdateProfileRequest struct {
	Name            *string `json:"name"`
	TrackingEnabled *bool   `json:"trackingEnabled"`
	NotifyOnOpen    *bool   `json:"notifications"`
	DailyReports    *bool   `json:"dailyReports"`
}

// userPayload is the account shape returned to the extension
func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
		"apiKey": user.APIKey,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.Register(req.Email, req.Name, req.Password)
	if err != nil {
		switch err {
		case services.ErrUserAlreadyExists:
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		case services.ErrPasswordTooShort:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 6 characters"})
		default:
			h.logger.Error("registration failed", "email", req.Email, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	token, _, err := h.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("token generation failed", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    userPayload(user),
		"token":   token,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		if err == services.ErrStoreUnavailable {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, _, err := h.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("token generation failed", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    userPayload(user),
		"token":   token,
	})
}

// AutoCreate handles POST /auth/auto-create. Idempotent per email: an
// existing account returns its existing API key instead of erroring.
func (h *AuthHandler) AutoCreate(c *gin.Context) {
	var req AutoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.AutoProvision(req.Email, req.Name)
	if err != nil {
		h.logger.Error("auto-provision failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload(user)})
}

// GetProfile handles GET /auth/profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updated, err := h.users.UpdateProfile(user.ID, services.ProfileUpdate{
		Name:            req.Name,
		TrackingEnabled: req.TrackingEnabled,
		NotifyOnOpen:    req.NotifyOnOpen,
		DailyReports:    req.DailyReports,
	})
	if err != nil {
		h.logger.Error("profile update failed", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": updated})
}

// NewAPIKey handles POST /auth/api-key, replacing the caller's key
func (h *AuthHandler) NewAPIKey(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	apiKey, err := h.users.RegenerateAPIKey(user.ID)
	if err != nil {
		h.logger.Error("api key regeneration failed", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "New API key generated", "apiKey": apiKey})
}
