package client

import (
	"sync"

	"LifeLine/internal/models"
	"LifeLine/pkg/errors"
	"LifeLine/pkg/websocket"
)

// Sender pushes an envelope upstream. *websocket.Connection satisfies it.
type Sender interface {
	SendMessage(*websocket.Message) error
}

// AlertBoard is the responder-side view of open emergencies. It keeps alerts
// in arrival order, absorbs duplicate deliveries, and retracts entries when
// any responder acknowledges. Acknowledging is optimistic: the entry leaves
// the board before the server confirms, because the retraction broadcast
// that follows would remove it anyway.
type AlertBoard struct {
	mu     sync.Mutex
	order  []string
	alerts map[string]*models.EmergencyAlert
	sender Sender
}

func NewAlertBoard(sender Sender) *AlertBoard {
	return &AlertBoard{
		alerts: make(map[string]*models.EmergencyAlert),
		sender: sender,
	}
}

// HandleMessage feeds a received envelope into the board. Unrelated event
// types are ignored so the board can sit on a shared dispatch path.
func (b *AlertBoard) HandleMessage(msg *websocket.Message) error {
	switch msg.Type {
	case websocket.EventEmergencyNew, websocket.EventEmergencyCritical:
		var alert models.EmergencyAlert
		if err := msg.DecodeData(&alert); err != nil {
			return errors.Wrap(err, "malformed alert")
		}
		b.Upsert(&alert)
	case websocket.EventEmergencyAckedBroadcast:
		var record models.AcknowledgmentRecord
		if err := msg.DecodeData(&record); err != nil {
			return errors.Wrap(err, "malformed acknowledgment")
		}
		b.Retract(record.AlertID)
	}
	return nil
}

// Upsert adds an alert, or refreshes it in place when the id is already on
// the board. A refresh keeps the original position. Returns true when the
// alert is new.
func (b *AlertBoard) Upsert(alert *models.EmergencyAlert) bool {
	if alert == nil || alert.AlertID == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.alerts[alert.AlertID]; ok {
		b.alerts[alert.AlertID] = alert
		return false
	}
	b.alerts[alert.AlertID] = alert
	b.order = append(b.order, alert.AlertID)
	return true
}

// Retract removes an alert. Removing an id that is not on the board is a
// no-op, since the retraction may arrive after a local acknowledgment
// already cleared it.
func (b *AlertBoard) Retract(alertID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, idx := b.removeLocked(alertID)
	return idx >= 0
}

// Acknowledge clears the alert locally and sends the claim upstream. When
// the send fails the entry is restored to its original position, so the
// responder can retry.
func (b *AlertBoard) Acknowledge(alertID, note string) error {
	if b.sender == nil {
		return errors.WithCode(errors.CodeUnauthenticated, "not connected")
	}

	b.mu.Lock()
	alert, idx := b.removeLocked(alertID)
	b.mu.Unlock()
	if idx < 0 {
		return errors.WithCodef(errors.CodeValidation, "alert %s is not on the board", alertID)
	}

	msg, err := websocket.NewMessage(websocket.EventEmergencyAck, map[string]string{
		"alertId": alertID,
		"message": note,
	})
	if err == nil {
		err = b.sender.SendMessage(msg)
	}
	if err != nil {
		b.mu.Lock()
		b.restoreLocked(alert, idx)
		b.mu.Unlock()
		return errors.Wrap(err, "acknowledgment not sent")
	}
	return nil
}

// Alerts returns the open alerts in arrival order.
func (b *AlertBoard) Alerts() []*models.EmergencyAlert {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*models.EmergencyAlert, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.alerts[id])
	}
	return out
}

func (b *AlertBoard) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// removeLocked returns the removed alert and its former position, or -1.
func (b *AlertBoard) removeLocked(alertID string) (*models.EmergencyAlert, int) {
	alert, ok := b.alerts[alertID]
	if !ok {
		return nil, -1
	}
	delete(b.alerts, alertID)
	for i, id := range b.order {
		if id == alertID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return alert, i
		}
	}
	return alert, -1
}

func (b *AlertBoard) restoreLocked(alert *models.EmergencyAlert, idx int) {
	if alert == nil {
		return
	}
	if _, ok := b.alerts[alert.AlertID]; ok {
		return
	}
	b.alerts[alert.AlertID] = alert
	if idx < 0 || idx > len(b.order) {
		idx = len(b.order)
	}
	b.order = append(b.order[:idx], append([]string{alert.AlertID}, b.order[idx:]...)...)
}
