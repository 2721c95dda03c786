package types

import (
	"time"

	"github.com/google/uuid"
)

// RequestResult is the reduced result for one instrument across all of its
// providers, maintained by the verification summary reducer.
type RequestResult struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    uuid.UUID    `gorm:"type:uuid;not null;index;uniqueIndex:idx_result_request_instrument;column:request_id" json:"request_id"`
	InstrumentID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_result_request_instrument;column:instrument_id" json:"instrument_id"`
	Status       ResultStatus `gorm:"not null;default:0;column:status" json:"status"`

	// Result is the normalized value in [0,1]; nil until a provider answers.
	Result       *float64   `gorm:"column:result" json:"result"`
	Code         ResultCode `gorm:"not null;default:0;column:code" json:"code"`
	ErrorMessage *string    `gorm:"column:error_message" json:"error_message"`
	// Audit is the blob store path of the audit trail.
	Audit string `gorm:"column:audit" json:"audit"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RequestResult) TableName() string {
	return "request_result"
}
