package types

import (
	"time"

	"github.com/google/uuid"
)

// Histogram rows keep running decile counts of normalized results. Buckets
// are append-only counters: incremented on every processed provider result,
// never decremented or rebuilt.

// HistogramBuckets is embedded by every histogram variant.
type HistogramBuckets struct {
	B0 int64 `gorm:"not null;default:0;column:b0" json:"b0"`
	B1 int64 `gorm:"not null;default:0;column:b1" json:"b1"`
	B2 int64 `gorm:"not null;default:0;column:b2" json:"b2"`
	B3 int64 `gorm:"not null;default:0;column:b3" json:"b3"`
	B4 int64 `gorm:"not null;default:0;column:b4" json:"b4"`
	B5 int64 `gorm:"not null;default:0;column:b5" json:"b5"`
	B6 int64 `gorm:"not null;default:0;column:b6" json:"b6"`
	B7 int64 `gorm:"not null;default:0;column:b7" json:"b7"`
	B8 int64 `gorm:"not null;default:0;column:b8" json:"b8"`
	B9 int64 `gorm:"not null;default:0;column:b9" json:"b9"`
}

// Buckets returns the counts as a slice indexed by decile.
func (h *HistogramBuckets) Buckets() []int64 {
	return []int64{h.B0, h.B1, h.B2, h.B3, h.B4, h.B5, h.B6, h.B7, h.B8, h.B9}
}

// Total returns the number of results accumulated into this histogram.
func (h *HistogramBuckets) Total() int64 {
	var total int64
	for _, b := range h.Buckets() {
		total += b
	}
	return total
}

// BucketColumn maps a decile index onto its column name.
func BucketColumn(bucket int) string {
	columns := []string{"b0", "b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8", "b9"}
	if bucket < 0 {
		bucket = 0
	}
	if bucket > 9 {
		bucket = 9
	}
	return columns[bucket]
}

// ResultBucket computes the decile for a normalized result in [0,1].
func ResultBucket(result float64) int {
	bucket := int(result * 10)
	if bucket > 9 {
		bucket = 9
	}
	if bucket < 0 {
		bucket = 0
	}
	return bucket
}

type HistogramLearnerInstrument struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_learner_instrument;column:learner_id" json:"learner_id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_learner_instrument;column:instrument_id" json:"instrument_id"`
	HistogramBuckets
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (HistogramLearnerInstrument) TableName() string {
	return "histogram_learner_instrument"
}

type HistogramLearnerProvider struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_learner_provider;column:learner_id" json:"learner_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_learner_provider;column:provider_id" json:"provider_id"`
	HistogramBuckets
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (HistogramLearnerProvider) TableName() string {
	return "histogram_learner_provider"
}

type HistogramActivityInstrument struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_activity_instrument;column:activity_id" json:"activity_id"`
	InstrumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_activity_instrument;column:instrument_id" json:"instrument_id"`
	HistogramBuckets
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (HistogramActivityInstrument) TableName() string {
	return "histogram_activity_instrument"
}

type HistogramActivityProvider struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_activity_provider;column:activity_id" json:"activity_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_hist_activity_provider;column:provider_id" json:"provider_id"`
	HistogramBuckets
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (HistogramActivityProvider) TableName() string {
	return "histogram_activity_provider"
}
