package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProviderNotification is a deferred write filed by a provider. Info fully
// describes the eventual write, so the replay path performs exactly the same
// operation the provider would have performed synchronously.
type ProviderNotification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_notification_provider_key;column:provider_id" json:"provider_id"`
	// Key is the provider-chosen idempotency key.
	Key  string         `gorm:"not null;uniqueIndex:idx_notification_provider_key;column:key" json:"key"`
	Info datatypes.JSON `gorm:"column:info" json:"info"`
	// When is the due time; the sweeper dispatches notifications with When <= now.
	When time.Time `gorm:"not null;index;column:when" json:"when"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProviderNotification) TableName() string {
	return "provider_notification"
}
