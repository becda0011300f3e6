package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/inletchat/inlet/internal/convo"
	"github.com/inletchat/inlet/internal/database"
	"github.com/inletchat/inlet/internal/feed"
	"github.com/inletchat/inlet/internal/logger"
	"github.com/inletchat/inlet/internal/models"
)

// Frame types
const (
	// Client to server
	FrameTypeOpen        = "open"
	FrameTypeCloseThread = "close_thread"
	FrameTypeSend        = "send"
	FrameTypeSync        = "sync"

	// Server to client
	FrameTypeConversations = "conversations"
	FrameTypeThread        = "thread"
	FrameTypeError         = "error"
)

var log = logger.New("websocket")

// Frame is the wire format for both directions of the socket.
type Frame struct {
	Type          string                 `json:"type"`
	UserID        uuid.UUID              `json:"user_id,omitempty"`
	Content       string                 `json:"content,omitempty"`
	IsAIGenerated bool                   `json:"is_ai_generated,omitempty"`
	Conversations []*models.Conversation `json:"conversations,omitempty"`
	Messages      []*models.Message      `json:"messages,omitempty"`
	Version       uint64                 `json:"version,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Session is one connected client: a socket plus the conversation
// controller that keeps its view reconciled with the store.
type Session struct {
	UserID     uuid.UUID
	Socket     *websocket.Conn
	Send       chan []byte
	controller *convo.Controller
}

// Manager maintains the set of active sessions
type Manager struct {
	db         database.DBInterface
	feed       *feed.Broker
	sessions   map[uuid.UUID]*Session
	register   chan *Session
	unregister chan *Session
	mutex      sync.Mutex
}

// NewManager creates a new session manager
func NewManager(db database.DBInterface, broker *feed.Broker) *Manager {
	return &Manager{
		db:         db,
		feed:       broker,
		sessions:   make(map[uuid.UUID]*Session),
		register:   make(chan *Session),
		unregister: make(chan *Session),
	}
}

// Run starts the session manager
func (m *Manager) Run() {
	for {
		select {
		case session := <-m.register:
			m.mutex.Lock()
			m.sessions[session.UserID] = session
			log.Info("Session connected: %s", session.UserID)
			m.mutex.Unlock()
		case session := <-m.unregister:
			m.mutex.Lock()
			if _, ok := m.sessions[session.UserID]; ok {
				delete(m.sessions, session.UserID)
				close(session.Send)
				log.Info("Session disconnected: %s", session.UserID)
			}
			m.mutex.Unlock()
		}
	}
}

// HandleWebSocket upgrades an authenticated request and runs a session for
// it. The session subscribes the controller to the change feed; closing the
// socket unsubscribes it and discards any reconciliation still in flight.
func (m *Manager) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		log.Warn("No userID in context, rejecting connection from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		log.Error("Invalid UUID in context from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user identification"})
		return
	}

	controller, err := convo.NewController(userUUID, m.db, m.feed)
	if err != nil {
		log.Error("Failed to create controller for %s: %v", userUUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize session"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			log.Debug("WebSocket origin: %s", origin)
			// TODO: In production, implement proper origin checking
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	session := &Session{
		UserID:     userUUID,
		Socket:     conn,
		Send:       make(chan []byte, 256),
		controller: controller,
	}

	if err := controller.Start(); err != nil {
		log.Error("Initial load failed for %s: %v", userUUID, err)
		session.sendError("Failed to load conversations")
	}

	m.register <- session

	go session.readPump(m)
	go session.writePump()
	log.Info("Session %s connected and ready", session.UserID)
}

func (s *Session) sendError(message string) {
	frame := Frame{
		Type:      FrameTypeError,
		Content:   message,
		Timestamp: time.Now(),
	}
	payload, _ := json.Marshal(frame)
	select {
	case s.Send <- payload:
	default:
	}
}

// pushSnapshots queues the current conversation list, and thread snapshot
// when a conversation is open, for delivery to the client.
func (s *Session) pushSnapshots() {
	frame := Frame{
		Type:          FrameTypeConversations,
		Conversations: s.controller.Conversations(),
		Version:       s.controller.Version(),
		Timestamp:     time.Now(),
	}
	payload, _ := json.Marshal(frame)
	select {
	case s.Send <- payload:
	default:
		log.Warn("Dropping conversations frame for slow session %s", s.UserID)
	}

	active := s.controller.ActiveCounterpart()
	if active == uuid.Nil {
		return
	}

	threadFrame := Frame{
		Type:      FrameTypeThread,
		UserID:    active,
		Messages:  s.controller.Thread(),
		Timestamp: time.Now(),
	}
	payload, _ = json.Marshal(threadFrame)
	select {
	case s.Send <- payload:
	default:
		log.Warn("Dropping thread frame for slow session %s", s.UserID)
	}
}

// readPump pumps frames from the websocket connection into the controller
func (s *Session) readPump(m *Manager) {
	defer func() {
		log.Debug("Session %s disconnecting, unregistering from manager", s.UserID)
		s.controller.Close()
		m.unregister <- s
		s.Socket.Close()
	}()

	s.Socket.SetReadLimit(64 * 1024)
	s.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.Socket.SetPongHandler(func(string) error {
		s.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	log.Debug("Started read pump for session %s", s.UserID)

	messageCount := 0
	lastResetTime := time.Now()
	const maxMessagesPerMinute = 60

	for {
		if messageCount >= maxMessagesPerMinute {
			if time.Since(lastResetTime) < time.Minute {
				log.Warn("Rate limit exceeded for session %s", s.UserID)
				time.Sleep(time.Second)
				continue
			}
			messageCount = 0
			lastResetTime = time.Now()
		}

		_, payload, err := s.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from session %s: %v", s.UserID, err)
			} else {
				log.Info("Session %s closed connection: %v", s.UserID, err)
			}
			break
		}

		messageCount++

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Error("Error unmarshaling frame: %v", err)
			s.sendError("Invalid frame format")
			continue
		}

		log.Debug("Received frame type '%s' from session %s", frame.Type, s.UserID)

		switch frame.Type {
		case FrameTypeOpen:
			if frame.UserID == uuid.Nil {
				s.sendError("Invalid user ID")
				continue
			}
			if _, err := s.controller.OpenThread(frame.UserID); err != nil {
				log.Error("Open thread failed for session %s: %v", s.UserID, err)
				s.sendError("Failed to open conversation")
			}
		case FrameTypeCloseThread:
			s.controller.CloseThread()
		case FrameTypeSend:
			if frame.Content == "" {
				log.Debug("Empty message content from session %s", s.UserID)
				continue
			}
			if frame.UserID == uuid.Nil {
				s.sendError("Invalid recipient ID")
				continue
			}
			message, err := m.db.InsertMessage(s.UserID, frame.UserID, frame.Content, frame.IsAIGenerated)
			if err != nil {
				log.Error("Send failed for session %s: %v", s.UserID, err)
				s.sendError("Failed to send message")
				continue
			}
			m.feed.Publish(message)
			if err := s.controller.MessageSent(); err != nil {
				log.Error("Post-send reconciliation failed for session %s: %v", s.UserID, err)
			}
		case FrameTypeSync:
			if err := s.controller.Reconcile(); err != nil {
				log.Error("Requested reconciliation failed for session %s: %v", s.UserID, err)
				s.sendError("Failed to refresh conversations")
			}
		default:
			log.Warn("Unknown frame type '%s' from session %s", frame.Type, s.UserID)
			s.sendError("Unknown frame type")
		}
	}
}

// writePump pumps queued frames and controller updates to the connection
func (s *Session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.Socket.Close()
	}()

	// Deliver the initial view without waiting for a trigger
	s.pushSnapshots()

	for {
		select {
		case payload, ok := <-s.Send:
			s.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The manager closed the channel
				s.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.Socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Add queued frames to the current websocket message
			n := len(s.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-s.controller.Updates():
			s.pushSnapshots()
		case <-ticker.C:
			s.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
