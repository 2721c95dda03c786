package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SENDCategory is a special-needs accommodation category. Data carries the
// category effects as JSON: {"disabled_instruments": [...], "enabled_options": [...]}.
type SENDCategory struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InstitutionID uuid.UUID      `gorm:"type:uuid;not null;index;column:institution_id" json:"institution_id"`
	Description   string         `gorm:"column:description" json:"description"`
	Data          datatypes.JSON `gorm:"column:data" json:"data"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SENDCategory) TableName() string {
	return "send_category"
}

// SENDCategoryData is the decoded shape of SENDCategory.Data.
type SENDCategoryData struct {
	DisabledInstruments []uuid.UUID `json:"disabled_instruments"`
	EnabledOptions      []string    `json:"enabled_options"`
}

// SENDLearner assigns a category to a learner, optionally until ExpiresAt.
type SENDLearner struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_send_learner_category;column:learner_id" json:"learner_id"`
	CategoryID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_send_learner_category;column:category_id" json:"category_id"`
	ExpiresAt  *time.Time `gorm:"column:expires_at" json:"expires_at"`
	CreatedAt  time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (SENDLearner) TableName() string {
	return "send_learner"
}
