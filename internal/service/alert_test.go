package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LifeLine/internal/models"
	"LifeLine/internal/store"
	"LifeLine/pkg/metrics"
	"LifeLine/pkg/middleware"
	"LifeLine/pkg/websocket"
)

type stubDirectory struct {
	details *models.PatientDetails
	err     error
}

func (d *stubDirectory) Details(_ context.Context, _ string) (*models.PatientDetails, error) {
	return d.details, d.err
}

func newTestService(t *testing.T, hub *websocket.Hub, dir PatientDirectory) (*AlertService, *store.PendingAlerts) {
	t.Helper()
	limiter, err := middleware.NewRaiseLimiter("")
	require.NoError(t, err)
	pending := store.NewPendingAlerts()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewAlertService(hub, pending, dir, limiter, m), pending
}

func newTestConn(hub *websocket.Hub, id, userID, role string) *websocket.Connection {
	return &websocket.Connection{
		ID:       id,
		UserID:   userID,
		Username: userID,
		Role:     role,
		Send:     make(chan []byte, 16),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
	}
}

// receive pops the next envelope from a connection's send buffer.
func receive(t *testing.T, c *websocket.Connection) *websocket.Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg websocket.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatalf("no message on connection %s", c.ID)
		return nil
	}
}

func assertSilent(t *testing.T, c *websocket.Connection) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message on connection %s: %s", c.ID, raw)
	default:
	}
}

func raisePayload(patientID string, severity models.Severity) *websocket.Message {
	msg, _ := websocket.NewMessage(websocket.EventEmergencyRaise, models.EmergencyAlert{
		PatientID: patientID,
		Severity:  severity,
		Location:  models.Location{Latitude: -13.96, Longitude: 33.77},
		Symptoms:  "chest pain",
	})
	return msg
}

func ackPayload(alertID, note string) *websocket.Message {
	msg, _ := websocket.NewMessage(websocket.EventEmergencyAck, ackRequest{AlertID: alertID, Message: note})
	return msg
}

func TestRaiseFansOutToResponderRoles(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	dir := &stubDirectory{details: &models.PatientDetails{
		Name:           "Alice Banda",
		Contact:        "+265999000111",
		MedicalHistory: []string{"asthma"},
	}}
	svc, pending := newTestService(t, hub, dir)

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	driver := newTestConn(hub, "c-drv", "drv-1", models.RoleAmbulanceDriver)
	admin := newTestConn(hub, "c-adm", "adm-1", models.RoleAdmin)
	ministry := newTestConn(hub, "c-moh", "moh-1", models.RoleMOH)
	for _, c := range []*websocket.Connection{patient, hw, driver, admin, ministry} {
		hub.Register(c)
	}
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-1", models.SeverityMedium))

	assert.Equal(t, 1, pending.Len())
	for _, c := range []*websocket.Connection{hw, driver, admin} {
		msg := receive(t, c)
		assert.Equal(t, websocket.EventEmergencyNew, msg.Type)

		var alert models.EmergencyAlert
		require.NoError(t, msg.DecodeData(&alert))
		assert.NotEmpty(t, alert.AlertID)
		assert.Equal(t, "pat-1", alert.PatientID)
		assert.Equal(t, models.SeverityMedium, alert.Severity)
		require.NotNil(t, alert.PatientDetails)
		assert.Equal(t, "Alice Banda", alert.PatientDetails.Name)
	}
	assertSilent(t, ministry)
	assertSilent(t, patient)
}

func TestRaiseCriticalReachesMinistry(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, _ := newTestService(t, hub, &stubDirectory{})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	ministry := newTestConn(hub, "c-moh", "moh-1", models.RoleMOH)
	hub.Register(patient)
	hub.Register(ministry)
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-1", models.SeverityCritical))

	msg := receive(t, ministry)
	assert.Equal(t, websocket.EventEmergencyCritical, msg.Type)
}

func TestRaiseRejectsPatientMismatch(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hub.Register(patient)
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-2", models.SeverityHigh))

	assert.Equal(t, 0, pending.Len())
	msg := receive(t, patient)
	assert.Equal(t, websocket.EventError, msg.Type)
}

func TestRaiseRequiresSeverity(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hub.Register(patient)
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-1", ""))

	assert.Equal(t, 0, pending.Len())
	msg := receive(t, patient)
	assert.Equal(t, websocket.EventError, msg.Type)
}

func TestRaiseSurvivesMissingProfile(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{err: assert.AnError})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	hub.Register(patient)
	hub.Register(hw)
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-1", models.SeverityLow))

	assert.Equal(t, 1, pending.Len())
	msg := receive(t, hw)
	var alert models.EmergencyAlert
	require.NoError(t, msg.DecodeData(&alert))
	assert.Nil(t, alert.PatientDetails)
}

func TestRaiseRateLimited(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	limiter, err := middleware.NewRaiseLimiter("1-M")
	require.NoError(t, err)
	pending := store.NewPendingAlerts()
	svc := NewAlertService(hub, pending, &stubDirectory{}, limiter, metrics.NewMetrics(prometheus.NewRegistry()))

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hub.Register(patient)
	time.Sleep(100 * time.Millisecond)

	svc.HandleRaise(patient, raisePayload("pat-1", models.SeverityLow))
	svc.HandleRaise(patient, raisePayload("pat-1", models.SeverityLow))

	assert.Equal(t, 1, pending.Len())
	msg := receive(t, patient)
	assert.Equal(t, websocket.EventError, msg.Type)
}

func TestAcknowledgeSingleWinner(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	driver := newTestConn(hub, "c-drv", "drv-1", models.RoleAmbulanceDriver)
	for _, c := range []*websocket.Connection{patient, hw, driver} {
		hub.Register(c)
	}
	time.Sleep(100 * time.Millisecond)

	pending.Put(&models.EmergencyAlert{AlertID: "a-1", PatientID: "pat-1", Severity: models.SeverityHigh})

	svc.HandleAcknowledge(hw, ackPayload("a-1", "on my way"))
	svc.HandleAcknowledge(driver, ackPayload("a-1", "also coming"))

	assert.Equal(t, 0, pending.Len())

	// the second attempt lost silently, so the driver holds exactly the
	// retraction from the first
	msg := receive(t, driver)
	assert.Equal(t, websocket.EventEmergencyAckedBroadcast, msg.Type)
	var record models.AcknowledgmentRecord
	require.NoError(t, msg.DecodeData(&record))
	assert.Equal(t, "a-1", record.AlertID)
	assert.Equal(t, "hw-1", record.AcknowledgedBy)
	assert.Equal(t, "on my way", record.Message)
	assertSilent(t, driver)

	// the winner's own dashboard is excluded from the retraction
	assertSilent(t, hw)

	confirmation := receive(t, patient)
	assert.Equal(t, websocket.EventEmergencyAcked, confirmation.Type)
	var conf ackConfirmation
	require.NoError(t, confirmation.DecodeData(&conf))
	assert.Equal(t, "a-1", conf.AlertID)
	assert.Equal(t, "hw-1", conf.AcknowledgedBy)
	// the winning responder's note is relayed with the confirmation
	assert.Contains(t, conf.Message, "on my way")
	assertSilent(t, patient)
}

func TestAcknowledgeUnknownAlertIsNoOp(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, _ := newTestService(t, hub, &stubDirectory{})

	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	hub.Register(hw)
	time.Sleep(100 * time.Millisecond)

	svc.HandleAcknowledge(hw, ackPayload("missing", ""))
	assertSilent(t, hw)
}

func TestAcknowledgeRequiresResponderRole(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{})

	patient := newTestConn(hub, "c-pat", "pat-1", models.RolePatient)
	hub.Register(patient)
	time.Sleep(100 * time.Millisecond)

	pending.Put(&models.EmergencyAlert{AlertID: "a-1", PatientID: "pat-1", Severity: models.SeverityLow})
	svc.HandleAcknowledge(patient, ackPayload("a-1", ""))

	assert.Equal(t, 1, pending.Len())
	msg := receive(t, patient)
	assert.Equal(t, websocket.EventError, msg.Type)
}

func TestAcknowledgeOfflinePatient(t *testing.T) {
	hub := websocket.NewHub(nil)
	defer hub.Close()

	svc, pending := newTestService(t, hub, &stubDirectory{})

	hw := newTestConn(hub, "c-hw", "hw-1", models.RoleHealthWorker)
	hub.Register(hw)
	time.Sleep(100 * time.Millisecond)

	pending.Put(&models.EmergencyAlert{AlertID: "a-1", PatientID: "pat-gone", Severity: models.SeverityLow})
	svc.HandleAcknowledge(hw, ackPayload("a-1", ""))

	// the alert is still closed even though the confirmation had nowhere to go
	assert.Equal(t, 0, pending.Len())
}
