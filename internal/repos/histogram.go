package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type HistogramRepo interface {
	IncrementLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID, bucket int) error
	IncrementLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID, bucket int) error
	IncrementActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID, bucket int) error
	IncrementActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID, bucket int) error

	GetLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) (*types.HistogramLearnerInstrument, error)
	GetLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.HistogramLearnerProvider, error)
	GetActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) (*types.HistogramActivityInstrument, error)
	GetActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID) (*types.HistogramActivityProvider, error)
}

type histogramRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHistogramRepo(db *gorm.DB, baseLog *logger.Logger) HistogramRepo {
	return &histogramRepo{db: db, log: baseLog.With("repo", "HistogramRepo")}
}

// incrementAssignments builds the on-conflict assignment that bumps a single
// bucket counter in place.
func incrementAssignments(bucket int) clause.Set {
	column := types.BucketColumn(bucket)
	return clause.Assignments(map[string]interface{}{
		column:       gorm.Expr(column+" + ?", 1),
		"updated_at": time.Now(),
	})
}

func (r *histogramRepo) IncrementLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID, bucket int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.HistogramLearnerInstrument{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		InstrumentID: instrumentID,
	}
	setBucket(&row.HistogramBuckets, bucket)
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "instrument_id"}},
			DoUpdates: incrementAssignments(bucket),
		}).
		Create(row).Error
}

func (r *histogramRepo) IncrementLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID, bucket int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.HistogramLearnerProvider{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		ProviderID: providerID,
	}
	setBucket(&row.HistogramBuckets, bucket)
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "provider_id"}},
			DoUpdates: incrementAssignments(bucket),
		}).
		Create(row).Error
}

func (r *histogramRepo) IncrementActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID, bucket int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.HistogramActivityInstrument{
		ID:           uuid.New(),
		ActivityID:   activityID,
		InstrumentID: instrumentID,
	}
	setBucket(&row.HistogramBuckets, bucket)
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "instrument_id"}},
			DoUpdates: incrementAssignments(bucket),
		}).
		Create(row).Error
}

func (r *histogramRepo) IncrementActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID, bucket int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.HistogramActivityProvider{
		ID:         uuid.New(),
		ActivityID: activityID,
		ProviderID: providerID,
	}
	setBucket(&row.HistogramBuckets, bucket)
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "provider_id"}},
			DoUpdates: incrementAssignments(bucket),
		}).
		Create(row).Error
}

func setBucket(h *types.HistogramBuckets, bucket int) {
	switch bucket {
	case 0:
		h.B0 = 1
	case 1:
		h.B1 = 1
	case 2:
		h.B2 = 1
	case 3:
		h.B3 = 1
	case 4:
		h.B4 = 1
	case 5:
		h.B5 = 1
	case 6:
		h.B6 = 1
	case 7:
		h.B7 = 1
	case 8:
		h.B8 = 1
	default:
		h.B9 = 1
	}
}

func (r *histogramRepo) GetLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) (*types.HistogramLearnerInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.HistogramLearnerInstrument
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND instrument_id = ?", learnerID, instrumentID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *histogramRepo) GetLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.HistogramLearnerProvider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.HistogramLearnerProvider
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND provider_id = ?", learnerID, providerID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *histogramRepo) GetActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) (*types.HistogramActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.HistogramActivityInstrument
	err := transaction.WithContext(ctx).
		Where("activity_id = ? AND instrument_id = ?", activityID, instrumentID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *histogramRepo) GetActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID) (*types.HistogramActivityProvider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.HistogramActivityProvider
	err := transaction.WithContext(ctx).
		Where("activity_id = ? AND provider_id = ?", activityID, providerID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
