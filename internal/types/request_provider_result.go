package types

import (
	"time"

	"github.com/google/uuid"
)

// RequestProviderResult is the raw, un-reduced answer of one provider for a
// request. Writing a Processed row triggers the histogram updates.
type RequestProviderResult struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID    `gorm:"type:uuid;not null;index;uniqueIndex:idx_provider_result_request_provider;column:request_id" json:"request_id"`
	ProviderID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_provider_result_request_provider;column:provider_id" json:"provider_id"`
	Status     ResultStatus `gorm:"not null;default:0;column:status" json:"status"`

	Result       *float64   `gorm:"column:result" json:"result"`
	Code         ResultCode `gorm:"not null;default:0;column:code" json:"code"`
	ErrorMessage *string    `gorm:"column:error_message" json:"error_message"`
	Audit        string     `gorm:"column:audit" json:"audit"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RequestProviderResult) TableName() string {
	return "request_provider_result"
}
