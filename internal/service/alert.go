package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"LifeLine/internal/models"
	"LifeLine/internal/store"
	"LifeLine/pkg/errors"
	"LifeLine/pkg/metrics"
	"LifeLine/pkg/middleware"
	"LifeLine/pkg/websocket"
)

// drift tolerance for client-supplied timestamps; anything outside is
// replaced with server time
const timestampTolerance = 5 * time.Minute

const lookupTimeout = 5 * time.Second

// PatientDirectory resolves the profile snapshot attached to outgoing alerts.
type PatientDirectory interface {
	Details(ctx context.Context, patientID string) (*models.PatientDetails, error)
}

// AlertService ingests emergency alerts and coordinates their acknowledgment.
// Ingestion validates and fans out, acknowledgment resolves the race between
// competing responders so that exactly one of them wins.
type AlertService struct {
	hub      *websocket.Hub
	store    *store.PendingAlerts
	patients PatientDirectory
	limiter  *middleware.RaiseLimiter
	metrics  *metrics.Metrics
}

func NewAlertService(hub *websocket.Hub, pending *store.PendingAlerts, patients PatientDirectory, limiter *middleware.RaiseLimiter, m *metrics.Metrics) *AlertService {
	return &AlertService{
		hub:      hub,
		store:    pending,
		patients: patients,
		limiter:  limiter,
		metrics:  m,
	}
}

// Register binds the emergency events to the hub dispatcher.
func (s *AlertService) Register() {
	s.hub.HandleFunc(websocket.EventEmergencyRaise, s.HandleRaise)
	s.hub.HandleFunc(websocket.EventEmergencyAck, s.HandleAcknowledge)
}

// HandleRaise validates an incoming alert, stores it as pending and fans it
// out to the responder roles. High and critical alerts additionally reach
// ministry dashboards.
func (s *AlertService) HandleRaise(c *websocket.Connection, msg *websocket.Message) {
	var alert models.EmergencyAlert
	if err := msg.DecodeData(&alert); err != nil {
		s.reject(c, "malformed", errors.CodeValidation, "malformed alert payload")
		return
	}

	if alert.PatientID == "" {
		alert.PatientID = c.UserID
	}
	if alert.PatientID != c.UserID {
		s.reject(c, "patient_mismatch", errors.CodePatientMismatch, "patientId does not match the authenticated user")
		return
	}

	if !s.limiter.Allow(context.Background(), c.UserID) {
		s.reject(c, "rate_limited", errors.CodeRateLimited, "alert submission rate exceeded")
		return
	}

	if alert.Severity == "" {
		s.reject(c, "missing_severity", errors.CodeMissingSeverity, "severity is required")
		return
	}
	severity, ok := models.ParseSeverity(string(alert.Severity))
	if !ok {
		s.reject(c, "invalid_severity", errors.CodeValidation, "unknown severity")
		return
	}
	alert.Severity = severity

	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}

	now := time.Now().UTC()
	if alert.Timestamp.IsZero() || absDuration(now.Sub(alert.Timestamp)) > timestampTolerance {
		alert.Timestamp = now
	}

	alert.ReportedBy = c.Username
	if alert.ReportedBy == "" {
		alert.ReportedBy = c.UserID
	}

	// profile lookup is best effort, responders still get the alert itself
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	details, err := s.patients.Details(ctx, alert.PatientID)
	cancel()
	if err != nil {
		logrus.Warnf("patient details unavailable for %s: %v", alert.PatientID, err)
		details = nil
	}
	alert.PatientDetails = details

	if isNew := s.store.Put(&alert); !isNew {
		logrus.Warnf("alert %s resubmitted, replacing pending copy", alert.AlertID)
	}
	s.metrics.AlertRaised(string(alert.Severity))
	s.metrics.SetPendingAlerts(s.store.Len())

	logrus.Infof("emergency alert %s raised by %s severity=%s", alert.AlertID, alert.PatientID, alert.Severity)

	if out, err := websocket.NewMessage(websocket.EventEmergencyNew, alert); err == nil {
		s.hub.BroadcastToRoles(out, "", models.DefaultAudience()...)
	}
	if alert.Severity.Critical() {
		if out, err := websocket.NewMessage(websocket.EventEmergencyCritical, alert); err == nil {
			s.hub.BroadcastToRoles(out, "", models.CriticalAudience()...)
		}
	}
}

type ackRequest struct {
	AlertID string `json:"alertId"`
	Message string `json:"message,omitempty"`
}

type ackConfirmation struct {
	AlertID        string    `json:"alertId"`
	AcknowledgedBy string    `json:"acknowledgedBy"`
	Role           string    `json:"role"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// HandleAcknowledge resolves an acknowledgment attempt. Removing the alert
// from the pending store is the single critical section, so when several
// responders race, exactly one passes through here as the winner. Losers are
// a silent no-op: the retraction they are about to receive already tells
// them the alert is closed.
func (s *AlertService) HandleAcknowledge(c *websocket.Connection, msg *websocket.Message) {
	if !models.IsResponderRole(c.Role) {
		c.SendError(errors.CodeValidation, "role may not acknowledge alerts")
		return
	}

	var req ackRequest
	if err := msg.DecodeData(&req); err != nil || req.AlertID == "" {
		c.SendError(errors.CodeValidation, "alertId is required")
		return
	}

	alert, won := s.store.Remove(req.AlertID)
	if !won {
		s.metrics.AckLost()
		logrus.Debugf("alert %s already acknowledged, ignoring attempt by %s", req.AlertID, c.UserID)
		return
	}

	name := c.Username
	if name == "" {
		name = c.UserID
	}
	record := models.AcknowledgmentRecord{
		AlertID:        alert.AlertID,
		AcknowledgedBy: name,
		Role:           c.Role,
		Message:        req.Message,
		Timestamp:      time.Now().UTC(),
	}

	s.metrics.AckWon(c.Role)
	s.metrics.SetPendingAlerts(s.store.Len())

	logrus.Infof("alert %s acknowledged by %s role=%s", alert.AlertID, c.UserID, c.Role)

	// the acknowledging dashboard updates locally, everyone else retracts
	if out, err := websocket.NewMessage(websocket.EventEmergencyAckedBroadcast, record); err == nil {
		s.hub.BroadcastToRoles(out, c.ID, models.ResponderRoles()...)
	}

	confirmationText := "Your emergency alert has been acknowledged. Help is on the way."
	if record.Message != "" {
		confirmationText += " " + record.Message
	}
	confirmation := ackConfirmation{
		AlertID:        record.AlertID,
		AcknowledgedBy: record.AcknowledgedBy,
		Role:           record.Role,
		Message:        confirmationText,
		Timestamp:      record.Timestamp,
	}
	if out, err := websocket.NewMessage(websocket.EventEmergencyAcked, confirmation); err == nil {
		if !s.hub.SendToUser(alert.PatientID, out) {
			logrus.Infof("patient %s offline, confirmation for %s not delivered", alert.PatientID, alert.AlertID)
		}
	}
}

func (s *AlertService) reject(c *websocket.Connection, reason string, code int, message string) {
	s.metrics.AlertRejected(reason)
	logrus.Warnf("alert from %s rejected: %s", c.UserID, reason)
	c.SendError(code, message)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
