package store

import (
	"sync"

	"LifeLine/internal/models"
)

// PendingAlerts is the authoritative in-memory table of alerts raised but
// not yet acknowledged. An alert is either present (RAISED) or removed;
// there is no partially-acknowledged state. The table is memory-resident
// only: a process restart loses pending alerts.
type PendingAlerts struct {
	mu     sync.Mutex
	alerts map[string]*models.EmergencyAlert
}

// NewPendingAlerts creates an empty store.
func NewPendingAlerts() *PendingAlerts {
	return &PendingAlerts{
		alerts: make(map[string]*models.EmergencyAlert),
	}
}

// Put inserts the alert under its ID. Inserting a duplicate ID updates the
// existing entry in place; it never produces a second live alert. Returns
// true when the alert was new.
func (p *PendingAlerts) Put(alert *models.EmergencyAlert) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, exists := p.alerts[alert.AlertID]
	p.alerts[alert.AlertID] = alert
	return !exists
}

// Remove atomically checks for and removes the alert. The check and the
// delete are a single critical section: under concurrent acknowledgments
// exactly one caller observes ok == true and becomes the winner.
func (p *PendingAlerts) Remove(alertID string) (*models.EmergencyAlert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	alert, ok := p.alerts[alertID]
	if !ok {
		return nil, false
	}
	delete(p.alerts, alertID)
	return alert, true
}

// Get returns the alert without removing it.
func (p *PendingAlerts) Get(alertID string) (*models.EmergencyAlert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	alert, ok := p.alerts[alertID]
	return alert, ok
}

// Len returns the number of pending alerts.
func (p *PendingAlerts) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}
