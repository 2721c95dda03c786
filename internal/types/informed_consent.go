package types

import (
	"time"

	"github.com/google/uuid"
)

// InformedConsent is one version of the consent document for an institution.
// Versions follow a major.minor.patch scheme; a learner consent stays usable
// while major.minor match the current version.
type InformedConsent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InstitutionID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_ic_institution_version;column:institution_id" json:"institution_id"`
	Version       string    `gorm:"not null;uniqueIndex:idx_ic_institution_version;column:version" json:"version"`
	ValidFrom     time.Time `gorm:"not null;column:valid_from" json:"valid_from"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (InformedConsent) TableName() string {
	return "informed_consent"
}
