package types

import (
	"time"

	"github.com/google/uuid"
)

// EnrolmentSample is one raw capture submitted to build a learner model.
type EnrolmentSample struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID uuid.UUID    `gorm:"type:uuid;not null;index;column:learner_id" json:"learner_id"`
	Status    SampleStatus `gorm:"not null;default:0;column:status" json:"status"`
	// Data is the blob store path of the raw capture.
	Data         string  `gorm:"not null;column:data" json:"data"`
	ErrorMessage *string `gorm:"column:error_message" json:"error_message"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EnrolmentSample) TableName() string {
	return "enrolment_sample"
}

// EnrolmentSampleInstrument tags a sample with a candidate instrument.
type EnrolmentSampleInstrument struct {
	SampleID     uuid.UUID `gorm:"type:uuid;not null;primaryKey;column:sample_id" json:"sample_id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;primaryKey;column:instrument_id" json:"instrument_id"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (EnrolmentSampleInstrument) TableName() string {
	return "enrolment_sample_instrument"
}
