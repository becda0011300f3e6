package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/inletchat/inlet/internal/auth"
	"github.com/inletchat/inlet/internal/database"
	"github.com/inletchat/inlet/internal/models"
)

// setupAuthHandlerTest creates a test router with the auth handler backed
// by a MockDB
func setupAuthHandlerTest(t *testing.T) (*gin.Engine, *MockDB) {
	gin.SetMode(gin.TestMode)

	auth.InitJWTKey([]byte("test-secret-key"))

	mockDB := new(MockDB)
	handler := NewAuthHandler(mockDB)

	router := gin.New()
	router.POST("/register", handler.Register)
	router.POST("/login", handler.Login)
	router.GET("/me", AuthMiddleware(), handler.GetMe)

	return router, mockDB
}

func TestRegister(t *testing.T) {
	router, mockDB := setupAuthHandlerTest(t)

	t.Run("valid registration", func(t *testing.T) {
		profile := &models.Profile{
			ID:        uuid.New(),
			Username:  "testuser",
			Email:     "test@example.com",
			CreatedAt: time.Now().UTC(),
		}

		mockDB.On("CreateProfile", "testuser", "test@example.com", mock.AnythingOfType("string")).
			Return(profile, nil).Once()

		body, _ := json.Marshal(models.ProfileRegistration{
			Username: "testuser",
			Email:    "test@example.com",
			Password: "password123",
		})

		req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response models.ProfileResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, profile.ID, response.ID)
		assert.Equal(t, "testuser", response.Username)

		mockDB.AssertExpectations(t)
	})

	t.Run("duplicate profile", func(t *testing.T) {
		mockDB.On("CreateProfile", "testuser", "test@example.com", mock.AnythingOfType("string")).
			Return(nil, database.ErrProfileAlreadyExists).Once()

		body, _ := json.Marshal(models.ProfileRegistration{
			Username: "testuser",
			Email:    "test@example.com",
			Password: "password456",
		})

		req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockDB.AssertExpectations(t)
	})

	t.Run("invalid input", func(t *testing.T) {
		body, _ := json.Marshal(models.ProfileRegistration{
			Username: "",
			Email:    "invalid-email",
			Password: "",
		})

		req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	router, mockDB := setupAuthHandlerTest(t)

	password := "password123"
	hash, err := auth.HashPassword(password)
	assert.NoError(t, err)

	profile := &models.Profile{
		ID:           uuid.New(),
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("valid credentials", func(t *testing.T) {
		mockDB.On("GetProfileByEmail", profile.Email).Return(profile, nil).Once()
		mockDB.On("UpdateLastSeen", profile.ID).Return(nil).Once()

		body, _ := json.Marshal(models.ProfileLogin{Email: profile.Email, Password: password})

		req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Token string                 `json:"token"`
			User  models.ProfileResponse `json:"user"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, profile.ID, response.User.ID)

		mockDB.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockDB.On("GetProfileByEmail", profile.Email).Return(profile, nil).Once()

		body, _ := json.Marshal(models.ProfileLogin{Email: profile.Email, Password: "wrongpassword"})

		req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockDB.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		mockDB.On("GetProfileByEmail", "nobody@example.com").
			Return(nil, database.ErrProfileNotFound).Once()

		body, _ := json.Marshal(models.ProfileLogin{Email: "nobody@example.com", Password: password})

		req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockDB.AssertExpectations(t)
	})
}

func TestGetMe(t *testing.T) {
	router, mockDB := setupAuthHandlerTest(t)

	profile := &models.Profile{
		ID:        uuid.New(),
		Username:  "testuser",
		Email:     "test@example.com",
		CreatedAt: time.Now().UTC(),
	}

	token, _, err := auth.GenerateToken(profile)
	assert.NoError(t, err)

	t.Run("authenticated", func(t *testing.T) {
		mockDB.On("GetProfileByID", profile.ID).Return(profile, nil).Once()

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response models.ProfileResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, profile.ID, response.ID)

		mockDB.AssertExpectations(t)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
