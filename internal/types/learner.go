package types

import (
	"time"

	"github.com/google/uuid"
)

// Learner is an institution user that submits enrolment samples and
// verification requests. LearnerID is the anonymized identity shared with
// providers; the primary key never leaves the platform.
type Learner struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InstitutionID uuid.UUID `gorm:"type:uuid;not null;index;column:institution_id" json:"institution_id"`
	LearnerID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:learner_id" json:"learner_id"`
	FirstName     string    `gorm:"column:first_name" json:"first_name"`
	LastName      string    `gorm:"column:last_name" json:"last_name"`
	Email         string    `gorm:"index;column:email" json:"email"`

	ConsentID       *uuid.UUID `gorm:"type:uuid;column:consent_id" json:"consent_id"`
	ConsentAccepted *time.Time `gorm:"column:consent_accepted" json:"consent_accepted"`
	ConsentRejected *time.Time `gorm:"column:consent_rejected" json:"consent_rejected"`

	JoinedAt  time.Time `gorm:"not null;default:now();column:joined_at" json:"joined_at"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Learner) TableName() string {
	return "learner"
}
