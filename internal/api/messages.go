package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/convo"
	"github.com/inletchat/inlet/internal/database"
	"github.com/inletchat/inlet/internal/logger"
	"github.com/inletchat/inlet/internal/models"
)

var log = logger.New("api")

// FeedPublisher is the send path's hook into the change feed.
type FeedPublisher interface {
	Publish(*models.Message)
}

// MessageHandler handles message and conversation routes
type MessageHandler struct {
	DB   database.DBInterface
	Feed FeedPublisher
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(db database.DBInterface, feed FeedPublisher) *MessageHandler {
	return &MessageHandler{DB: db, Feed: feed}
}

// SendMessage inserts a new message and publishes it to the change feed
// once it is durable. A send failure is surfaced to the caller and never
// touches any derived view.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	senderID := userID.(uuid.UUID)

	message, err := h.DB.InsertMessage(senderID, req.RecipientID, req.Content, req.IsAIGenerated)
	if errors.Is(err, database.ErrEmptyContent) || errors.Is(err, database.ErrSelfMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, database.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Feed != nil {
		h.Feed.Publish(message)
	}

	c.JSON(http.StatusCreated, message)
}

// GetConversations returns the viewer's aggregated conversation list
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userUUID := userID.(uuid.UUID)

	messages, err := h.DB.MessagesForViewer(userUUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conversations, err := convo.Aggregate(userUUID, messages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetThread returns the full thread with another user, oldest first, and
// marks the counterpart's unread messages read. The thread is loaded and
// returned even if read-marking fails.
func (h *MessageHandler) GetThread(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userUUID := userID.(uuid.UUID)

	counterpartID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	messages, err := h.DB.Thread(userUUID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	manager := convo.NewReadStateManager(h.DB)
	if _, err := manager.MarkRead(userUUID, counterpartID); err != nil {
		// Thread still renders; the badge clears on the next open
		log.Warn("Failed to mark conversation read for %s: %v", userUUID, err)
	}

	c.JSON(http.StatusOK, messages)
}

// MarkConversationRead marks every unread message from the given user as
// read and reports how many rows changed
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userUUID := userID.(uuid.UUID)

	counterpartID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	manager := convo.NewReadStateManager(h.DB)
	changed, err := manager.MarkRead(userUUID, counterpartID)
	if errors.Is(err, convo.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": changed})
}
