package models

import "time"

// Severity of an emergency alert. It drives the audience: high and critical
// alerts additionally reach ministry dashboards.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a raw severity value.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), true
	}
	return "", false
}

// Critical reports whether the alert must also reach the ministry channel.
func (s Severity) Critical() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Responder roles entitled to receive and acknowledge alerts.
const (
	RolePatient         = "patient"
	RoleHealthWorker    = "health_worker"
	RoleAmbulanceDriver = "ambulance_driver"
	RoleAdmin           = "admin"
	RoleMOH             = "moh"
)

// DefaultAudience is the role set every alert is fanned out to.
func DefaultAudience() []string {
	return []string{RoleHealthWorker, RoleAmbulanceDriver, RoleAdmin}
}

// CriticalAudience is the extra role set for high/critical alerts.
func CriticalAudience() []string {
	return []string{RoleMOH}
}

// ResponderRoles are all roles that may acknowledge an alert.
func ResponderRoles() []string {
	return []string{RoleHealthWorker, RoleAmbulanceDriver, RoleAdmin, RoleMOH}
}

// IsResponderRole reports whether role may acknowledge alerts.
func IsResponderRole(role string) bool {
	switch role {
	case RoleHealthWorker, RoleAmbulanceDriver, RoleAdmin, RoleMOH:
		return true
	}
	return false
}

// Location is a coordinate pair, or a free-text fallback captured when
// geolocation is unavailable or denied.
type Location struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Text      string  `json:"text,omitempty"`
}

// PatientDetails is the denormalized profile snapshot attached at fan-out
// time for responder convenience.
type PatientDetails struct {
	Name           string   `json:"name"`
	Contact        string   `json:"contact"`
	MedicalHistory []string `json:"medicalHistory"`
}

// EmergencyAlert is a single distress signal. It lives in the pending store
// from ingestion until the acknowledgment coordinator removes it, and is
// never mutated in place apart from that removal.
type EmergencyAlert struct {
	AlertID        string          `json:"alertId"`
	PatientID      string          `json:"patientId"`
	Location       Location        `json:"location"`
	Severity       Severity        `json:"severity"`
	Symptoms       string          `json:"symptoms,omitempty"`
	Diagnosis      string          `json:"diagnosis,omitempty"`
	ReportedBy     string          `json:"reportedBy"`
	Timestamp      time.Time       `json:"timestamp"`
	PatientDetails *PatientDetails `json:"patientDetails,omitempty"`
}

// AcknowledgmentRecord closes an alert. Exactly one record is authoritative
// per alert.
type AcknowledgmentRecord struct {
	AlertID        string    `json:"alertId"`
	AcknowledgedBy string    `json:"acknowledgedBy"`
	Role           string    `json:"role"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DriverStatus values for the responder availability side channel.
const (
	DriverStatusAvailable = "available"
	DriverStatusBusy      = "busy"
	DriverStatusOffline   = "offline"
)

// ValidDriverStatus reports whether s is a known availability value.
func ValidDriverStatus(s string) bool {
	return s == DriverStatusAvailable || s == DriverStatusBusy || s == DriverStatusOffline
}

// DriverStatusUpdate is the availability broadcast payload. It is an
// independent side channel and never gates alert delivery.
type DriverStatusUpdate struct {
	DriverID  string    `json:"driverId"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
