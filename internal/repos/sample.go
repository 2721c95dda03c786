package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type EnrolmentSampleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, samples []*types.EnrolmentSample) ([]*types.EnrolmentSample, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EnrolmentSample, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentSampleInstrument) error
	ListInstrumentIDs(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]uuid.UUID, error)
	ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.EnrolmentSample, error)
	ListByLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) ([]*types.EnrolmentSample, error)
	ListInstrumentRowsBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleInstrument, error)
}

type enrolmentSampleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrolmentSampleRepo(db *gorm.DB, baseLog *logger.Logger) EnrolmentSampleRepo {
	return &enrolmentSampleRepo{db: db, log: baseLog.With("repo", "EnrolmentSampleRepo")}
}

func (r *enrolmentSampleRepo) Create(ctx context.Context, tx *gorm.DB, samples []*types.EnrolmentSample) ([]*types.EnrolmentSample, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(samples) == 0 {
		return []*types.EnrolmentSample{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&samples).Error; err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *enrolmentSampleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EnrolmentSample, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var sample types.EnrolmentSample
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&sample).Error
	if err != nil {
		return nil, err
	}
	if sample.ID == uuid.Nil {
		return nil, nil
	}
	return &sample, nil
}

func (r *enrolmentSampleRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.EnrolmentSample{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *enrolmentSampleRepo) AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentSampleInstrument) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *enrolmentSampleRepo) ListInstrumentIDs(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&types.EnrolmentSampleInstrument{}).
		Where("sample_id = ?", sampleID).
		Pluck("instrument_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *enrolmentSampleRepo) ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.EnrolmentSample, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSample
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrolmentSampleRepo) ListInstrumentRowsBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSampleInstrument
	if len(sampleIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("sample_id IN ?", sampleIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrolmentSampleRepo) ListByLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) ([]*types.EnrolmentSample, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSample
	err := transaction.WithContext(ctx).
		Joins("JOIN enrolment_sample_instrument esi ON esi.sample_id = enrolment_sample.id").
		Where("enrolment_sample.learner_id = ? AND esi.instrument_id = ?", learnerID, instrumentID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
