package models

import "time"

// Patient is the profile row backing the patientDetails snapshot. Profiles
// are managed by the surrounding application; this service only reads them.
type Patient struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Contact        string
	MedicalHistory string // JSON array of conditions
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
