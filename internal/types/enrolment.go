package types

import (
	"time"

	"github.com/google/uuid"
)

// Enrolment is the committed biometric model state for one (learner,
// provider) pair. Model rewrites are serialized through the LockedAt/LockedBy
// token: a writer must hold the token before touching the model blob.
type Enrolment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_enrolment_learner_provider;column:learner_id" json:"learner_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrolment_learner_provider;column:provider_id" json:"provider_id"`

	// Percentage in [0,1] reflects how complete the model is.
	Percentage float64 `gorm:"not null;default:0;column:percentage" json:"percentage"`
	// CanAnalyse gates verification: only usable models may analyse requests.
	CanAnalyse bool `gorm:"not null;default:false;column:can_analyse" json:"can_analyse"`

	LockedAt *time.Time `gorm:"column:locked_at" json:"locked_at"`
	LockedBy *uuid.UUID `gorm:"type:uuid;column:locked_by" json:"locked_by"`

	// Model is the blob store path of the committed model.
	Model string `gorm:"column:model" json:"model"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Enrolment) TableName() string {
	return "enrolment"
}

func (e *Enrolment) IsLocked() bool {
	return e.LockedAt != nil && e.LockedBy != nil
}

// EnrolmentModelSample records that a sample contributed to a committed model.
type EnrolmentModelSample struct {
	EnrolmentID uuid.UUID `gorm:"type:uuid;not null;primaryKey;column:enrolment_id" json:"enrolment_id"`
	SampleID    uuid.UUID `gorm:"type:uuid;not null;primaryKey;index;column:sample_id" json:"sample_id"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (EnrolmentModelSample) TableName() string {
	return "enrolment_model_sample"
}
