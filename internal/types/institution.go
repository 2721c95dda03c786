package types

import (
	"time"

	"github.com/google/uuid"
)

type Institution struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Acronym    string    `gorm:"uniqueIndex;not null;column:acronym" json:"acronym"`
	Name       string    `gorm:"column:name" json:"name"`
	// ExternalIC means consent is managed outside the platform and every
	// learner of this institution is treated as VALID_EXTERNAL.
	ExternalIC bool      `gorm:"not null;default:false;column:external_ic" json:"external_ic"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Institution) TableName() string {
	return "institution"
}
