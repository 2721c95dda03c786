package types

import (
	"time"

	"github.com/google/uuid"
)

// Request is one verification occasion for a learner during an activity.
type Request struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID  uuid.UUID     `gorm:"type:uuid;not null;index;column:learner_id" json:"learner_id"`
	ActivityID uuid.UUID     `gorm:"type:uuid;not null;index;column:activity_id" json:"activity_id"`
	SessionID  *uuid.UUID    `gorm:"type:uuid;index;column:session_id" json:"session_id"`
	Status     RequestStatus `gorm:"not null;default:0;column:status" json:"status"`
	// Data is the blob store path of the captured payload.
	Data         string  `gorm:"not null;column:data" json:"data"`
	ErrorMessage *string `gorm:"column:error_message" json:"error_message"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Request) TableName() string {
	return "request"
}

// RequestInstrument links a request to one of its required instruments.
type RequestInstrument struct {
	RequestID    uuid.UUID `gorm:"type:uuid;not null;primaryKey;column:request_id" json:"request_id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;primaryKey;column:instrument_id" json:"instrument_id"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RequestInstrument) TableName() string {
	return "request_instrument"
}
