package types

import (
	"time"

	"github.com/google/uuid"
)

// ReportActivity is the learner-facing trust report for one activity. Each
// level is the maximum over the contributing instrument rows.
type ReportActivity struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_report_activity_learner;column:activity_id" json:"activity_id"`
	LearnerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_report_activity_learner;column:learner_id" json:"learner_id"`

	IdentityLevel  ReportLevel `gorm:"not null;default:0;column:identity_level" json:"identity_level"`
	ContentLevel   ReportLevel `gorm:"not null;default:0;column:content_level" json:"content_level"`
	IntegrityLevel ReportLevel `gorm:"not null;default:0;column:integrity_level" json:"integrity_level"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReportActivity) TableName() string {
	return "report_activity"
}
