package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type SampleValidationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, validations []*types.EnrolmentSampleValidation) ([]*types.EnrolmentSampleValidation, error)
	GetBySampleProvider(ctx context.Context, tx *gorm.DB, sampleID, providerID uuid.UUID) (*types.EnrolmentSampleValidation, error)
	ListBySample(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]*types.EnrolmentSampleValidation, error)
	ListBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error)
	ListValidByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type sampleValidationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSampleValidationRepo(db *gorm.DB, baseLog *logger.Logger) SampleValidationRepo {
	return &sampleValidationRepo{db: db, log: baseLog.With("repo", "SampleValidationRepo")}
}

func (r *sampleValidationRepo) Create(ctx context.Context, tx *gorm.DB, validations []*types.EnrolmentSampleValidation) ([]*types.EnrolmentSampleValidation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(validations) == 0 {
		return []*types.EnrolmentSampleValidation{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&validations).Error; err != nil {
		return nil, err
	}
	return validations, nil
}

func (r *sampleValidationRepo) GetBySampleProvider(ctx context.Context, tx *gorm.DB, sampleID, providerID uuid.UUID) (*types.EnrolmentSampleValidation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var validation types.EnrolmentSampleValidation
	err := transaction.WithContext(ctx).
		Where("sample_id = ? AND provider_id = ?", sampleID, providerID).
		Limit(1).
		Find(&validation).Error
	if err != nil {
		return nil, err
	}
	if validation.ID == uuid.Nil {
		return nil, nil
	}
	return &validation, nil
}

func (r *sampleValidationRepo) ListBySample(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSampleValidation
	if err := transaction.WithContext(ctx).
		Where("sample_id = ?", sampleID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleValidationRepo) ListBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSampleValidation
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

func (r *sampleValidationRepo) ListValidByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EnrolmentSampleValidation
	if len(sampleIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("provider_id = ? AND status = ? AND sample_id IN ?",
			providerID, types.ValidationValid, sampleIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleValidationRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.EnrolmentSampleValidation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
