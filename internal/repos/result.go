package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type RequestResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.RequestResult) ([]*types.RequestResult, error)
	GetByRequestInstrument(ctx context.Context, tx *gorm.DB, requestID, instrumentID uuid.UUID) (*types.RequestResult, error)
	ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestResult, error)
	ListByActivityLearnerInstrument(ctx context.Context, tx *gorm.DB, activityID, learnerID, instrumentID uuid.UUID) ([]*types.RequestResult, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type requestResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequestResultRepo(db *gorm.DB, baseLog *logger.Logger) RequestResultRepo {
	return &requestResultRepo{db: db, log: baseLog.With("repo", "RequestResultRepo")}
}

func (r *requestResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.RequestResult) ([]*types.RequestResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(results) == 0 {
		return []*types.RequestResult{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *requestResultRepo) GetByRequestInstrument(ctx context.Context, tx *gorm.DB, requestID, instrumentID uuid.UUID) (*types.RequestResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.RequestResult
	err := transaction.WithContext(ctx).
		Where("request_id = ? AND instrument_id = ?", requestID, instrumentID).
		Limit(1).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	if result.ID == uuid.Nil {
		return nil, nil
	}
	return &result, nil
}

func (r *requestResultRepo) ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequestResult
	if err := transaction.WithContext(ctx).
		Where("request_id = ?", requestID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requestResultRepo) ListByActivityLearnerInstrument(ctx context.Context, tx *gorm.DB, activityID, learnerID, instrumentID uuid.UUID) ([]*types.RequestResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequestResult
	err := transaction.WithContext(ctx).
		Joins("JOIN request req ON req.id = request_result.request_id").
		Where("req.activity_id = ? AND req.learner_id = ? AND request_result.instrument_id = ?",
			activityID, learnerID, instrumentID).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requestResultRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.RequestResult{}).
		Where("id = ?", id).
		Updates(updates).Error
}

type ProviderResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.RequestProviderResult) ([]*types.RequestProviderResult, error)
	GetByRequestProvider(ctx context.Context, tx *gorm.DB, requestID, providerID uuid.UUID) (*types.RequestProviderResult, error)
	ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestProviderResult, error)
	ListByRequestProviders(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, providerIDs []uuid.UUID) ([]*types.RequestProviderResult, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type providerResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProviderResultRepo(db *gorm.DB, baseLog *logger.Logger) ProviderResultRepo {
	return &providerResultRepo{db: db, log: baseLog.With("repo", "ProviderResultRepo")}
}

func (r *providerResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.RequestProviderResult) ([]*types.RequestProviderResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(results) == 0 {
		return []*types.RequestProviderResult{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *providerResultRepo) GetByRequestProvider(ctx context.Context, tx *gorm.DB, requestID, providerID uuid.UUID) (*types.RequestProviderResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.RequestProviderResult
	err := transaction.WithContext(ctx).
		Where("request_id = ? AND provider_id = ?", requestID, providerID).
		Limit(1).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	if result.ID == uuid.Nil {
		return nil, nil
	}
	return &result, nil
}

func (r *providerResultRepo) ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestProviderResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequestProviderResult
	if err := transaction.WithContext(ctx).
		Where("request_id = ?", requestID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *providerResultRepo) ListByRequestProviders(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, providerIDs []uuid.UUID) ([]*types.RequestProviderResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RequestProviderResult
	if len(providerIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("request_id = ? AND provider_id IN ?", requestID, providerIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *providerResultRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.RequestProviderResult{}).
		Where("id = ?", id).
		Updates(updates).Error
}
