package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/auth"
	"github.com/inletchat/inlet/internal/database"
	"github.com/inletchat/inlet/internal/models"
)

// AuthHandler handles authentication routes
type AuthHandler struct {
	DB database.DBInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.DBInterface) *AuthHandler {
	return &AuthHandler{DB: db}
}

// Register handles profile registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.ProfileRegistration

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Hash password
	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	profile, err := h.DB.CreateProfile(input.Username, input.Email, hashedPassword)
	if err == database.ErrProfileAlreadyExists {
		c.JSON(http.StatusConflict, gin.H{"error": "Profile already exists"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create profile"})
		return
	}

	// Return profile data (without password)
	c.JSON(http.StatusCreated, profile.ToResponse())
}

// Login handles profile login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.ProfileLogin

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.DB.GetProfileByEmail(input.Email)
	if err == database.ErrProfileNotFound {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}

	// Check password
	if !auth.CheckPasswordHash(input.Password, profile.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// Best effort; login still succeeds if this fails
	_ = h.DB.UpdateLastSeen(profile.ID)

	// Generate JWT token
	token, expiry, err := auth.GenerateToken(profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"expiry": expiry,
		"user":   profile.ToResponse(),
	})
}

// GetMe gets the current profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	// The user should be added to context by auth middleware
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	userUUID := userID.(uuid.UUID)

	profile, err := h.DB.GetProfileByID(userUUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}

	c.JSON(http.StatusOK, profile.ToResponse())
}

// GetAllUsers lists every other profile, for starting new conversations
func (h *AuthHandler) GetAllUsers(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	userUUID := userID.(uuid.UUID)

	profiles, err := h.DB.GetAllProfiles(userUUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profiles"})
		return
	}

	responses := make([]*models.ProfileResponse, 0, len(profiles))
	for _, profile := range profiles {
		responses = append(responses, profile.ToResponse())
	}

	c.JSON(http.StatusOK, responses)
}
