package types

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a concrete implementation of an Instrument. Each provider
// consumes tasks from its own queue and answers through the provider API.
type Provider struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;index;column:instrument_id" json:"instrument_id"`
	Name         string    `gorm:"not null;column:name" json:"name"`
	Acronym      string    `gorm:"uniqueIndex;not null;column:acronym" json:"acronym"`
	// Queue is the task queue this provider's workers consume from.
	Queue string `gorm:"not null;column:queue" json:"queue"`

	Enabled          bool `gorm:"not null;default:false;column:enabled" json:"enabled"`
	AllowValidation  bool `gorm:"not null;default:false;column:allow_validation" json:"allow_validation"`
	ValidationActive bool `gorm:"not null;default:false;column:validation_active" json:"validation_active"`

	// InvertedPolarity means lower raw results are better. Thresholds below
	// are expressed on the normal-polarity scale.
	InvertedPolarity bool    `gorm:"not null;default:false;column:inverted_polarity" json:"inverted_polarity"`
	WarningBelow     float64 `gorm:"not null;default:0;column:warning_below" json:"warning_below"`
	AlertBelow       float64 `gorm:"not null;default:0;column:alert_below" json:"alert_below"`

	// SecretHash is the bcrypt hash of the shared secret provider workers
	// authenticate with.
	SecretHash string `gorm:"column:secret_hash" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Provider) TableName() string {
	return "provider"
}

// Polarity returns +1 for providers where higher is better and -1 otherwise.
func (p *Provider) Polarity() int {
	if p.InvertedPolarity {
		return -1
	}
	return 1
}
