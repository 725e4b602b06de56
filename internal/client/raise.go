package client

import (
	"LifeLine/internal/models"
	"LifeLine/pkg/errors"
	"LifeLine/pkg/websocket"
)

// RaiseAlert submits an emergency alert over the given sender. Raising
// without a live connection fails immediately so the caller can surface it;
// there is no local queueing or retry.
func RaiseAlert(sender Sender, alert *models.EmergencyAlert) error {
	if sender == nil {
		return errors.WithCode(errors.CodeUnauthenticated, "not connected")
	}
	if alert == nil {
		return errors.WithCode(errors.CodeValidation, "alert is required")
	}

	msg, err := websocket.NewMessage(websocket.EventEmergencyRaise, alert)
	if err != nil {
		return errors.Wrap(err, "alert serialization failed")
	}
	if err := sender.SendMessage(msg); err != nil {
		return errors.Wrap(err, "alert not sent")
	}
	return nil
}
