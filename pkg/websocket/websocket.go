package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "LifeLine/pkg/errors"
)

// ErrSendBufferFull is returned when a connection's send queue stays
// saturated past the send timeout.
var ErrSendBufferFull = errors.New("send buffer full")

// Message is the wire envelope for every event in both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	From      string          `json:"from,omitempty"`
}

// NewMessage builds an envelope around a JSON-serializable payload.
func NewMessage(eventType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// DecodeData unmarshals the envelope payload into v.
func (m *Message) DecodeData(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

// HandlerFunc processes an inbound event from a registered connection.
type HandlerFunc func(c *Connection, msg *Message)

// Observer receives delivery and registration signals; used to feed metrics
// without the hub depending on a metrics implementation.
type Observer interface {
	EventDelivered(event string)
	EventDropped(event string)
	ConnectionOpened(role string)
	ConnectionClosed(role string)
}

type nopObserver struct{}

func (nopObserver) EventDelivered(string)   {}
func (nopObserver) EventDropped(string)     {}
func (nopObserver) ConnectionOpened(string) {}
func (nopObserver) ConnectionClosed(string) {}

// Hub is the session registry: it tracks which authenticated identities hold
// open connections and under which role, and fans events out to role-scoped
// connection sets. Registry mutation is owned by the run loop; reads take the
// read lock and copy, so a fan-out snapshot is point-in-time.
type Hub struct {
	// connection ID -> connection
	connections map[string]*Connection
	// identity -> connection IDs (one identity may hold several dashboards)
	userConnections map[string]map[string]bool
	// role room -> connection IDs
	roleConnections map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection

	// inbound event dispatch, keyed by envelope type
	handlers   map[string]HandlerFunc
	handlersMu sync.RWMutex

	// invoked after a connection is fully deregistered
	onDisconnect func(c *Connection)

	connectionCount int64
	config          *Config
	observer        Observer

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub and starts its run loop.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections:     make(map[string]*Connection),
		userConnections: make(map[string]map[string]bool),
		roleConnections: make(map[string]map[string]bool),
		register:        make(chan *Connection, 256),
		unregister:      make(chan *Connection, 256),
		handlers:        make(map[string]HandlerFunc),
		config:          config,
		observer:        nopObserver{},
		ctx:             ctx,
		cancel:          cancel,
	}

	go hub.run()
	return hub
}

// SetObserver installs a delivery/registration observer. Call before serving
// connections.
func (h *Hub) SetObserver(o Observer) {
	if o != nil {
		h.observer = o
	}
}

// HandleFunc registers the handler for an inbound event type.
func (h *Hub) HandleFunc(eventType string, fn HandlerFunc) {
	h.handlersMu.Lock()
	h.handlers[eventType] = fn
	h.handlersMu.Unlock()
}

// OnDisconnect registers a callback invoked after a connection is removed
// from the registry.
func (h *Hub) OnDisconnect(fn func(c *Connection)) {
	h.onDisconnect = fn
}

func (h *Hub) handlerFor(eventType string) (HandlerFunc, bool) {
	h.handlersMu.RLock()
	defer h.handlersMu.RUnlock()
	fn, ok := h.handlers[eventType]
	return fn, ok
}

// Register queues a connection for registration.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister queues a connection for removal.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// run services registration and the heartbeat sweep.
func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// registerConnection adds a connection to the registry and joins it to its
// user and role rooms.
func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		if msg, err := NewMessage(EventError, errorPayload{
			Code:    apperrors.CodeConnectionLimit,
			Message: "connection limit reached",
		}); err == nil {
			if data, err := json.Marshal(msg); err == nil {
				conn.tryEnqueue(data)
			}
		}
		conn.closeSocket()
		logrus.Warnf("connection limit reached: %d", h.config.MaxConnections)
		return
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	if conn.UserID != "" {
		if h.userConnections[conn.UserID] == nil {
			h.userConnections[conn.UserID] = make(map[string]bool)
		}
		h.userConnections[conn.UserID][conn.ID] = true
	}

	if conn.Role != "" {
		if h.roleConnections[conn.Role] == nil {
			h.roleConnections[conn.Role] = make(map[string]bool)
		}
		h.roleConnections[conn.Role][conn.ID] = true
	}

	h.observer.ConnectionOpened(conn.Role)
	logrus.Infof("connection registered: %s user=%s role=%s total=%d",
		conn.ID, conn.UserID, conn.Role, atomic.LoadInt64(&h.connectionCount))
}

// unregisterConnection removes exactly the closed connection. The identity is
// dropped from the registry only when this was its last connection. Pending
// alert state is untouched; the disconnect callback runs after removal.
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()

	if _, exists := h.connections[conn.ID]; !exists {
		h.mu.Unlock()
		return
	}

	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)

	if conn.UserID != "" && h.userConnections[conn.UserID] != nil {
		delete(h.userConnections[conn.UserID], conn.ID)
		if len(h.userConnections[conn.UserID]) == 0 {
			delete(h.userConnections, conn.UserID)
		}
	}

	if conn.Role != "" && h.roleConnections[conn.Role] != nil {
		delete(h.roleConnections[conn.Role], conn.ID)
		if len(h.roleConnections[conn.Role]) == 0 {
			delete(h.roleConnections, conn.Role)
		}
	}

	conn.closeSend()
	h.mu.Unlock()

	h.observer.ConnectionClosed(conn.Role)
	logrus.Infof("connection unregistered: %s user=%s total=%d",
		conn.ID, conn.UserID, atomic.LoadInt64(&h.connectionCount))

	if h.onDisconnect != nil {
		h.onDisconnect(conn)
	}
}

// SessionsForRoles returns a point-in-time snapshot of the distinct
// connections whose role is in roles. Connections registering after the
// snapshot is taken are not included.
func (h *Hub) SessionsForRoles(roles ...string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var sessions []*Connection
	for _, role := range roles {
		for connID := range h.roleConnections[role] {
			if seen[connID] {
				continue
			}
			seen[connID] = true
			if conn, ok := h.connections[connID]; ok && conn.Alive() {
				sessions = append(sessions, conn)
			}
		}
	}
	return sessions
}

// BroadcastToRoles serializes the message once and pushes it to every
// distinct live connection in the target roles, except excludeConnID when
// non-empty. Delivery is best-effort per connection; a saturated recipient
// never fails the broadcast.
func (h *Hub) BroadcastToRoles(msg *Message, excludeConnID string, roles ...string) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("message serialization failed: %v", err)
		return
	}

	for _, conn := range h.SessionsForRoles(roles...) {
		if conn.ID == excludeConnID {
			continue
		}
		h.trySend(conn, msg.Type, data)
	}
}

// SendToUser pushes the message to every live connection held by the
// identity. Returns true when at least one connection was targeted.
func (h *Hub) SendToUser(userID string, msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.Errorf("message serialization failed: %v", err)
		return false
	}

	h.mu.RLock()
	var targets []*Connection
	for connID := range h.userConnections[userID] {
		if conn, ok := h.connections[connID]; ok && conn.Alive() {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		h.trySend(conn, msg.Type, data)
	}
	return len(targets) > 0
}

// IsUserConnected reports whether the identity holds at least one open
// connection.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID]) > 0
}

// trySend applies the backpressure policy for one recipient. The enqueue is
// guarded against a concurrent unregister closing the queue, so a recipient
// disconnecting mid-broadcast is a drop, never a panic.
func (h *Hub) trySend(conn *Connection, eventType string, data []byte) {
	var delivered bool
	if h.config.DropOnFull {
		delivered = conn.tryEnqueue(data)
	} else {
		timeout := h.config.SendTimeout
		if timeout <= 0 {
			timeout = 50 * time.Millisecond
		}
		delivered = conn.enqueueWait(data, timeout)
	}

	if delivered {
		h.observer.EventDelivered(eventType)
		return
	}

	h.observer.EventDropped(eventType)
	logrus.Warnf("send buffer full for connection %s, %s dropped", conn.ID, eventType)
	if h.config.CloseOnBackpressure {
		conn.closeSocket()
	}
}

// checkHeartbeats closes connections whose last pong is older than the
// connection timeout.
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.lastPing()) > h.config.ConnectionTimeout {
			logrus.Warnf("connection %s heartbeat timed out, closing", conn.ID)
			conn.setAlive(false)
			conn.closeSocket()
		}
	}
}

// GetConnectionCount returns the number of registered connections.
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetUserConnections returns how many connections the identity holds.
func (h *Hub) GetUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID])
}

// GetRoleConnections returns how many connections are registered under the
// role.
func (h *Hub) GetRoleConnections(role string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roleConnections[role])
}

// Done exposes the hub lifecycle for health checks.
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Close stops the run loop and closes every connection.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, conn := range h.connections {
		conn.closeSocket()
	}
	h.mu.Unlock()

	logrus.Info("websocket hub closed")
}
