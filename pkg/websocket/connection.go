package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	apperrors "LifeLine/pkg/errors"
)

// Identity is the authenticated principal behind a connection. Connections
// without an identity are refused before registration.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Connection is one live socket from an authenticated dashboard.
type Connection struct {
	ID       string
	UserID   string
	Username string
	Role     string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	mu       sync.RWMutex
	LastPing time.Time
	IsAlive  bool
	// set once by closeSend; enqueues check it under mu so a send can
	// never race the close of Send
	closed bool
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// origin enforcement is deferred to the fronting proxy
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// ServeConnection upgrades the HTTP request, registers the connection under
// the identity's role and user rooms, and starts the read/write pumps.
func ServeConnection(hub *Hub, w http.ResponseWriter, r *http.Request, identity Identity) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	if hub.config.EnableCompression {
		conn.EnableWriteCompression(true)
		if hub.config.CompressionLevel != 0 {
			_ = conn.SetCompressionLevel(hub.config.CompressionLevel)
		}
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		Conn:     conn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
	}

	hub.register <- connection

	go connection.writePump()
	go connection.readPump()
}

func (c *Connection) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IsAlive
}

func (c *Connection) setAlive(alive bool) {
	c.mu.Lock()
	c.IsAlive = alive
	c.mu.Unlock()
}

func (c *Connection) lastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LastPing
}

func (c *Connection) touchPing() {
	c.mu.Lock()
	c.LastPing = time.Now()
	c.mu.Unlock()
}

func (c *Connection) closeSocket() {
	if c.Conn != nil {
		c.Conn.Close()
	}
}

// closeSend closes the send queue exactly once. Enqueues after this return
// false instead of panicking on the closed channel.
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// tryEnqueue pushes data without blocking. Returns false when the
// connection is closed or the queue is full.
func (c *Connection) tryEnqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// enqueueWait pushes data, waiting up to timeout for queue space. The read
// lock is held across the wait so the queue cannot be closed under a
// blocked send.
func (c *Connection) enqueueWait(data []byte, timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	case <-time.After(timeout):
		return false
	}
}

// readPump reads inbound envelopes and dispatches them to the hub's
// registered handlers.
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.closeSocket()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touchPing()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("websocket read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump drains the send queue; queued messages are coalesced into a
// single frame separated by newlines.
func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		c.closeSocket()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses one inbound envelope and routes it. The sender field
// is always overwritten with the authenticated identity; clients cannot
// speak for anyone else.
func (c *Connection) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		logrus.Errorf("message parse failed: %v", err)
		c.SendError(apperrors.CodeValidation, "malformed message")
		return
	}

	msg.From = c.UserID

	if msg.Type == EventPing {
		c.handlePing()
		return
	}

	handler, ok := c.Hub.handlerFor(msg.Type)
	if !ok {
		logrus.Warnf("unknown event type: %s", msg.Type)
		c.SendError(apperrors.CodeUnknownEventType, "unknown event type: "+msg.Type)
		return
	}
	handler(c, &msg)
}

func (c *Connection) handlePing() {
	c.touchPing()

	response := Message{
		Type:      EventPong,
		Timestamp: time.Now().Unix(),
	}
	data, _ := json.Marshal(response)
	if !c.tryEnqueue(data) {
		logrus.Warnf("send buffer full for connection %s", c.ID)
	}
}

// SendMessage enqueues an envelope for this connection without blocking.
func (c *Connection) SendMessage(message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	timeout := c.Hub.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	if !c.enqueueWait(data, timeout) {
		return ErrSendBufferFull
	}
	return nil
}

// errorPayload is the body of an error event sent back to the offending
// connection.
type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendError reports a rejected operation back to this connection.
func (c *Connection) SendError(code int, message string) {
	msg, err := NewMessage(EventError, errorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := c.SendMessage(msg); err != nil {
		logrus.Warnf("could not deliver error to connection %s: %v", c.ID, err)
	}
}
