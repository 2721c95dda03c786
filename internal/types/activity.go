package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Activity is an assessable activity in a VLE course. Verification requests
// always belong to one activity.
type Activity struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InstitutionID uuid.UUID      `gorm:"type:uuid;not null;index;column:institution_id" json:"institution_id"`
	Name          string         `gorm:"column:name" json:"name"`
	Description   string         `gorm:"column:description" json:"description"`
	Enabled       bool           `gorm:"not null;default:false;column:enabled" json:"enabled"`
	Start         *time.Time     `gorm:"column:start" json:"start"`
	End           *time.Time     `gorm:"column:end" json:"end"`
	Conf          datatypes.JSON `gorm:"column:conf" json:"conf"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Activity) TableName() string {
	return "activity"
}

// ActivityInstrument configures one instrument for an activity. A row with
// AlternativeToID set is only used when SEND accommodations disable its
// parent instrument for a learner.
type ActivityInstrument struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID      uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_activity_instrument;column:activity_id" json:"activity_id"`
	InstrumentID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_activity_instrument;column:instrument_id" json:"instrument_id"`
	Active          bool           `gorm:"not null;default:true;column:active" json:"active"`
	AlternativeToID *uuid.UUID     `gorm:"type:uuid;index;column:alternative_to_id" json:"alternative_to_id"`
	Options         datatypes.JSON `gorm:"column:options" json:"options"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ActivityInstrument) TableName() string {
	return "activity_instrument"
}

// AssessmentSession groups the requests captured during one sitting of an
// activity by a learner.
type AssessmentSession struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID uuid.UUID  `gorm:"type:uuid;not null;index;column:activity_id" json:"activity_id"`
	LearnerID  uuid.UUID  `gorm:"type:uuid;not null;index;column:learner_id" json:"learner_id"`
	StartedAt  time.Time  `gorm:"not null;default:now();column:started_at" json:"started_at"`
	ClosedAt   *time.Time `gorm:"column:closed_at" json:"closed_at"`
	CreatedAt  time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AssessmentSession) TableName() string {
	return "assessment_session"
}
