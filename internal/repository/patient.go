package repository

import (
	"context"
	"encoding/json"
	"time"

	"LifeLine/internal/models"
	"LifeLine/pkg/cache"
	"LifeLine/pkg/errors"

	"gorm.io/gorm"
)

const profileCacheTTL = 5 * time.Minute

// PatientRepository reads patient profiles for the patientDetails snapshot.
// Lookups are cache-aside: the ingestion hot path normally hits the cache,
// not the database.
type PatientRepository struct {
	db    *gorm.DB
	cache cache.Cache
}

// NewPatientRepository creates a repository over the given database and
// cache.
func NewPatientRepository(db *gorm.DB, c cache.Cache) *PatientRepository {
	return &PatientRepository{db: db, cache: c}
}

// Details returns the profile snapshot for the patient. A missing profile
// is an error for the caller to decide on; ingestion treats it as a
// degraded alert, not a rejection.
func (r *PatientRepository) Details(ctx context.Context, patientID string) (*models.PatientDetails, error) {
	cacheKey := "patient:" + patientID

	if r.cache != nil {
		if cached, found := r.cache.Get(ctx, cacheKey); found {
			if details, ok := decodeDetails(cached); ok {
				return details, nil
			}
		}
	}

	var patient models.Patient
	if err := r.db.WithContext(ctx).First(&patient, "id = ?", patientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.WithCodef(errors.CodeProfileNotFound, "no profile for patient %s", patientID)
		}
		return nil, errors.Wrap(err, "patient lookup failed")
	}

	details := &models.PatientDetails{
		Name:           patient.Name,
		Contact:        patient.Contact,
		MedicalHistory: decodeHistory(patient.MedicalHistory),
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, cacheKey, details, profileCacheTTL)
	}

	return details, nil
}

// decodeDetails recovers a snapshot from a cache hit. The local backend
// stores the struct itself; the redis backend stores generic JSON.
func decodeDetails(cached interface{}) (*models.PatientDetails, bool) {
	switch v := cached.(type) {
	case *models.PatientDetails:
		return v, true
	case models.PatientDetails:
		return &v, true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var details models.PatientDetails
		if err := json.Unmarshal(data, &details); err != nil {
			return nil, false
		}
		return &details, true
	}
}

func decodeHistory(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var history []string
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return []string{}
	}
	return history
}
