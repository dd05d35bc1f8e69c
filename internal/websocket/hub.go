package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/medicinal/domain/entities"
	"github.com/satriahrh/medicinal/internal/live"
	"github.com/satriahrh/medicinal/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Only control messages are read.
	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the configured UI origin once it is deployed separately
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected UI clients and the live session each
// one owns.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	voice  *usecase.VoiceService
	logger *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub(voice *usecase.VoiceService, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		voice:      voice,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			delete(h.clients, client.id)
			h.mu.Unlock()
			if ok {
				client.stopSession()
				client.closeSend()
			}
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-h.done:
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for id, client := range h.clients {
				clients = append(clients, client)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			for _, client := range clients {
				client.stopSession()
				client.closeSend()
			}
			h.logger.Info("Hub stopped", zap.Int("clients", len(clients)))
			return
		}
	}
}

// Stop ends every live session and disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// Client is a middleman between the websocket connection and the hub. It
// owns at most one live session at a time.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send     chan []byte
	sendMu   sync.Mutex
	sendDone bool

	id        string
	validator *MessageValidator
	logger    *zap.Logger

	mutex          sync.Mutex
	session        *live.Session
	sessionStarted time.Time
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.New().String()
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		id:        id,
		validator: NewMessageValidator(),
		logger:    logger.With(zap.String("clientID", id)),
	}

	select {
	case client.hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues v for the write pump. Messages are dropped once the client
// is gone or when the peer is too slow to drain its buffer.
func (c *Client) enqueue(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendDone {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendDone {
		c.sendDone = true
		close(c.send)
	}
}

// processMessage processes incoming control messages from the UI
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.enqueue(CreateErrorMessage(ErrorCodeInvalidMessage, "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *StartMessage:
		c.handleStart()
	case *StopMessage:
		c.handleStop()
	case *PingMessage:
		c.enqueue(CreatePongMessage(m.Data))
	}
}

// handleStart creates and starts a live session unless one is running.
func (c *Client) handleStart() {
	c.mutex.Lock()
	if c.session != nil && c.session.State() != entities.SessionStateClosed {
		c.mutex.Unlock()
		c.enqueue(CreateErrorMessage(ErrorCodeSessionActive, "A voice session is already running", ""))
		return
	}

	observer := &sessionObserver{client: c}
	session, err := c.hub.voice.NewSession(observer)
	if err != nil {
		c.mutex.Unlock()
		c.logger.Error("Failed to create live session", zap.Error(err))
		c.enqueue(CreateErrorMessage(ErrorCodeInternal, "Failed to create voice session", err.Error()))
		return
	}
	observer.sessionID = session.ID()
	c.session = session
	c.sessionStarted = time.Now()
	c.mutex.Unlock()

	// Start blocks while connecting; a stop message must still get through.
	go func() {
		if err := session.Start(context.Background()); err != nil {
			c.logger.Warn("Live session failed to start", zap.String("sessionID", session.ID()), zap.Error(err))
			c.enqueue(CreateSessionErrorMessage(err))
		}
	}()
}

// handleStop stops the current live session.
func (c *Client) handleStop() {
	if !c.stopSession() {
		c.enqueue(CreateErrorMessage(ErrorCodeNoSession, "No voice session is running", ""))
	}
}

// stopSession stops and forgets the current session. It reports whether
// there was one.
func (c *Client) stopSession() bool {
	c.mutex.Lock()
	session := c.session
	c.session = nil
	c.mutex.Unlock()

	if session == nil {
		return false
	}
	session.Stop()
	return true
}

// expireSession stops the session if it has been running since before cutoff.
func (c *Client) expireSession(cutoff time.Time) bool {
	c.mutex.Lock()
	session := c.session
	if session == nil || c.sessionStarted.After(cutoff) {
		c.mutex.Unlock()
		return false
	}
	c.session = nil
	c.mutex.Unlock()

	session.Stop()
	c.enqueue(CreateErrorMessage(ErrorCodeSessionExpired, "The voice session reached its time limit", ""))
	return true
}

// sessionObserver forwards the events of one live session to its client.
type sessionObserver struct {
	client    *Client
	sessionID string
}

// Ensure sessionObserver implements the live.Observer interface
var _ live.Observer = (*sessionObserver)(nil)

func (o *sessionObserver) OnStateChange(state entities.SessionState) {
	o.client.enqueue(CreateStateMessage(o.sessionID, state))
}

func (o *sessionObserver) OnTalking(talking bool) {
	o.client.enqueue(CreateTalkingMessage(o.sessionID, talking))
}

func (o *sessionObserver) OnError(err error) {
	o.client.logger.Warn("Live session error", zap.String("sessionID", o.sessionID), zap.Error(err))
	o.client.enqueue(CreateSessionErrorMessage(err))
}
