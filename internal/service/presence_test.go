package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LifeLine/internal/models"
	"LifeLine/pkg/websocket"
)

func statusPayload(status string) *websocket.Message {
	msg, _ := websocket.NewMessage(websocket.EventDriverStatus, models.DriverStatusUpdate{Status: status})
	return msg
}

func TestDriverStatusBroadcast(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc := NewPresenceService(hub)

	driver := newTestConn(hub, "c-drv", "drv-1", models.RoleAmbulanceDriver)
	admin := newTestConn(hub, "c-adm", "adm-1", models.RoleAdmin)
	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	for _, c := range []*websocket.Connection{driver, admin, patient} {
		hub.Register(c)
	}
	time.Sleep(100 * time.Millisecond)

	svc.HandleStatus(driver, statusPayload(models.DriverStatusBusy))

	msg := receive(t, admin)
	assert.Equal(t, websocket.EventDriverStatusUpdate, msg.Type)
	var update models.DriverStatusUpdate
	require.NoError(t, msg.DecodeData(&update))
	assert.Equal(t, "drv-1", update.DriverID)
	assert.Equal(t, models.DriverStatusBusy, update.Status)

	// availability is coordination data, patients never see it
	assertSilent(t, patient)

	statuses := svc.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, models.DriverStatusBusy, statuses[0].Status)
}

func TestDriverStatusRejectsInvalid(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc := NewPresenceService(hub)

	driver := newTestConn(hub, "c-drv", "drv-1", models.RoleAmbulanceDriver)
	hub.Register(driver)
	time.Sleep(100 * time.Millisecond)

	svc.HandleStatus(driver, statusPayload("napping"))

	msg := receive(t, driver)
	assert.Equal(t, websocket.EventError, msg.Type)
	assert.Empty(t, svc.Statuses())
}

func TestDriverStatusRejectsNonDrivers(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc := NewPresenceService(hub)

	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	hub.Register(hw)
	time.Sleep(100 * time.Millisecond)

	svc.HandleStatus(hw, statusPayload(models.DriverStatusAvailable))

	msg := receive(t, hw)
	assert.Equal(t, websocket.EventError, msg.Type)
}

func TestDriverMarkedOfflineOnDisconnect(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc := NewPresenceService(hub)
	svc.Register()

	driver := newTestConn(hub, "c-drv", "drv-1", models.RoleAmbulanceDriver)
	admin := newTestConn(hub, "c-adm", "adm-1", models.RoleAdmin)
	hub.Register(driver)
	hub.Register(admin)
	time.Sleep(100 * time.Millisecond)

	svc.HandleStatus(driver, statusPayload(models.DriverStatusAvailable))
	receive(t, admin)

	hub.Unregister(driver)
	time.Sleep(100 * time.Millisecond)

	msg := receive(t, admin)
	assert.Equal(t, websocket.EventDriverStatusUpdate, msg.Type)
	var update models.DriverStatusUpdate
	require.NoError(t, msg.DecodeData(&update))
	assert.Equal(t, models.DriverStatusOffline, update.Status)
}
