package service

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"LifeLine/internal/models"
	"LifeLine/pkg/errors"
	"LifeLine/pkg/websocket"
)

// PresenceService tracks ambulance driver availability and relays it to the
// coordinating roles. Availability is advisory: it never gates alert
// delivery or acknowledgment.
type PresenceService struct {
	hub *websocket.Hub

	mu      sync.RWMutex
	drivers map[string]*models.DriverStatusUpdate
}

func NewPresenceService(hub *websocket.Hub) *PresenceService {
	return &PresenceService{
		hub:     hub,
		drivers: make(map[string]*models.DriverStatusUpdate),
	}
}

// Register binds the availability event and the disconnect hook.
func (s *PresenceService) Register() {
	s.hub.HandleFunc(websocket.EventDriverStatus, s.HandleStatus)
	s.hub.OnDisconnect(s.handleDisconnect)
}

// statusAudience is who watches driver availability.
func statusAudience() []string {
	return []string{models.RoleHealthWorker, models.RoleAdmin, models.RoleMOH}
}

// HandleStatus records a driver's availability and broadcasts the change.
func (s *PresenceService) HandleStatus(c *websocket.Connection, msg *websocket.Message) {
	if c.Role != models.RoleAmbulanceDriver {
		c.SendError(errors.CodeValidation, "only ambulance drivers report availability")
		return
	}

	var update models.DriverStatusUpdate
	if err := msg.DecodeData(&update); err != nil || !models.ValidDriverStatus(update.Status) {
		c.SendError(errors.CodeValidation, "status must be available, busy or offline")
		return
	}

	update.DriverID = c.UserID
	if update.Name == "" {
		update.Name = c.Username
	}
	update.Timestamp = time.Now().UTC()

	s.setStatus(&update)
	s.broadcast(&update)
}

// handleDisconnect marks a driver offline when their last connection drops.
func (s *PresenceService) handleDisconnect(c *websocket.Connection) {
	if c.Role != models.RoleAmbulanceDriver || s.hub.IsUserConnected(c.UserID) {
		return
	}

	update := &models.DriverStatusUpdate{
		DriverID:  c.UserID,
		Name:      c.Username,
		Status:    models.DriverStatusOffline,
		Timestamp: time.Now().UTC(),
	}
	s.setStatus(update)
	s.broadcast(update)
}

func (s *PresenceService) setStatus(update *models.DriverStatusUpdate) {
	s.mu.Lock()
	s.drivers[update.DriverID] = update
	s.mu.Unlock()
}

func (s *PresenceService) broadcast(update *models.DriverStatusUpdate) {
	logrus.Infof("driver %s status=%s", update.DriverID, update.Status)
	if out, err := websocket.NewMessage(websocket.EventDriverStatusUpdate, update); err == nil {
		s.hub.BroadcastToRoles(out, "", statusAudience()...)
	}
}

// Statuses returns a snapshot of the last known availability per driver.
func (s *PresenceService) Statuses() []*models.DriverStatusUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DriverStatusUpdate, 0, len(s.drivers))
	for _, u := range s.drivers {
		copied := *u
		out = append(out, &copied)
	}
	return out
}
