package types

import (
	"time"

	"github.com/google/uuid"
)

// Instrument is a verification modality (face recognition, keystroke
// dynamics, plagiarism...). The capability flags decide which trust report
// dimension its results feed.
type Instrument struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"not null;column:name" json:"name"`
	Acronym string    `gorm:"uniqueIndex;not null;column:acronym" json:"acronym"`
	Enabled bool      `gorm:"not null;default:false;column:enabled" json:"enabled"`

	RequiresEnrolment bool `gorm:"not null;default:false;column:requires_enrolment" json:"requires_enrolment"`

	Identity    bool `gorm:"not null;default:false;column:identity" json:"identity"`
	Originality bool `gorm:"not null;default:false;column:originality" json:"originality"`
	Authorship  bool `gorm:"not null;default:false;column:authorship" json:"authorship"`
	Integrity   bool `gorm:"not null;default:false;column:integrity" json:"integrity"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Instrument) TableName() string {
	return "instrument"
}
