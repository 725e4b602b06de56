package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"LifeLine/pkg/errors"
	"LifeLine/pkg/response"
)

// Handler exposes the upgrade endpoint and ops endpoints over gin.
type Handler struct {
	hub *Hub
	// optional extra figures merged into /ws/stats
	statsExtra func() map[string]interface{}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// SetStatsExtra installs a provider for service-level stats figures, e.g.
// the pending alert count.
func (h *Handler) SetStatsExtra(fn func() map[string]interface{}) {
	h.statsExtra = fn
}

// RegisterRoutes wires the websocket routes onto the engine. The upgrade
// route must sit behind the auth middleware that populates the identity
// fields.
func RegisterRoutes(r *gin.Engine, handler *Handler, authMiddleware gin.HandlerFunc) {
	r.GET(RouteWebSocket, authMiddleware, handler.HandleWebSocket)
	r.GET(RouteWebSocketStats, handler.GetStats)
	r.GET(RouteWebSocketHealth, handler.HealthCheck)
}

// HandleWebSocket upgrades an authenticated request to a socket session.
// Unauthenticated connections never reach the registry.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	role := c.GetString("role")
	if userID == "" || role == "" {
		response.FailWithStatus(c, http.StatusUnauthorized, errors.CodeUnauthenticated, "unauthenticated connection")
		return
	}

	ServeConnection(h.hub, c.Writer, c.Request, Identity{
		UserID:   userID,
		Username: c.GetString("username"),
		Role:     role,
	})
}

// GetStats reports hub figures.
func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"total_connections":   h.hub.GetConnectionCount(),
		"max_connections":     h.hub.config.MaxConnections,
		"heartbeat_interval":  h.hub.config.HeartbeatInterval.String(),
		"connection_timeout":  h.hub.config.ConnectionTimeout.String(),
		"message_buffer_size": h.hub.config.MessageBufferSize,
		"enable_compression":  h.hub.config.EnableCompression,
		"drop_on_full":        h.hub.config.DropOnFull,
	}
	if h.statsExtra != nil {
		for k, v := range h.statsExtra() {
			stats[k] = v
		}
	}

	c.JSON(http.StatusOK, stats)
}

// HealthCheck reports hub liveness and connection headroom.
func (h *Handler) HealthCheck(c *gin.Context) {
	select {
	case <-h.hub.Done():
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "websocket hub is closed",
		})
		return
	default:
	}

	totalConnections := h.hub.GetConnectionCount()
	maxConnections := h.hub.config.MaxConnections

	status := "healthy"
	if totalConnections >= maxConnections*9/10 {
		status = "warning"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"total_connections": totalConnections,
		"max_connections":   maxConnections,
		"connection_usage":  float64(totalConnections) / float64(maxConnections) * 100,
		"timestamp":         time.Now().Unix(),
	})
}
