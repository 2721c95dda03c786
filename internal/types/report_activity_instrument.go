package types

import (
	"time"

	"github.com/google/uuid"
)

// ReportActivityInstrument is the per-instrument detail of a trust report.
// Enrolment, Confidence and Result are percentages on a 0-100 scale.
type ReportActivityInstrument struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_report_instrument;column:report_id" json:"report_id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_instrument;column:instrument_id" json:"instrument_id"`

	Enrolment  int `gorm:"not null;default:0;column:enrolment" json:"enrolment"`
	Confidence int `gorm:"not null;default:0;column:confidence" json:"confidence"`
	Result     int `gorm:"not null;default:0;column:result" json:"result"`

	IdentityLevel  ReportLevel `gorm:"not null;default:0;column:identity_level" json:"identity_level"`
	ContentLevel   ReportLevel `gorm:"not null;default:0;column:content_level" json:"content_level"`
	IntegrityLevel ReportLevel `gorm:"not null;default:0;column:integrity_level" json:"integrity_level"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReportActivityInstrument) TableName() string {
	return "report_activity_instrument"
}
