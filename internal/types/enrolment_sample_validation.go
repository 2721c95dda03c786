package types

import (
	"time"

	"github.com/google/uuid"
)

// EnrolmentSampleValidation is one provider's opinion of a sample.
// Contribution in [0,1] is how much the sample would add to the enrolment
// percentage if consumed into the model.
type EnrolmentSampleValidation struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SampleID   uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_validation_sample_provider;column:sample_id" json:"sample_id"`
	ProviderID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_validation_sample_provider;column:provider_id" json:"provider_id"`
	Status     ValidationStatus `gorm:"not null;default:0;column:status" json:"status"`

	Contribution *float64 `gorm:"column:contribution" json:"contribution"`
	// Info is the blob store path of the validation detail written by the provider.
	Info         string  `gorm:"column:info" json:"info"`
	ErrorMessage *string `gorm:"column:error_message" json:"error_message"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EnrolmentSampleValidation) TableName() string {
	return "enrolment_sample_validation"
}
