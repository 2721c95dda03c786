package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type ProviderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, providers []*types.Provider) ([]*types.Provider, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Provider, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Provider, error)
	GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Provider, error)
	ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.Provider, error)
	ListEnabledByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error)
	ListValidatorsByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error)
}

type providerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProviderRepo(db *gorm.DB, baseLog *logger.Logger) ProviderRepo {
	return &providerRepo{db: db, log: baseLog.With("repo", "ProviderRepo")}
}

func (r *providerRepo) Create(ctx context.Context, tx *gorm.DB, providers []*types.Provider) ([]*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(providers) == 0 {
		return []*types.Provider{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *providerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var provider types.Provider
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&provider).Error
	if err != nil {
		return nil, err
	}
	if provider.ID == uuid.Nil {
		return nil, nil
	}
	return &provider, nil
}

func (r *providerRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Provider
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *providerRepo) GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var provider types.Provider
	err := transaction.WithContext(ctx).
		Where("acronym = ?", acronym).
		Limit(1).
		Find(&provider).Error
	if err != nil {
		return nil, err
	}
	if provider.ID == uuid.Nil {
		return nil, nil
	}
	return &provider, nil
}

func (r *providerRepo) ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Provider
	if err := transaction.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *providerRepo) ListEnabledByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Provider
	if err := transaction.WithContext(ctx).
		Where("instrument_id = ? AND enabled = ?", instrumentID, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *providerRepo) ListValidatorsByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Provider
	if err := transaction.WithContext(ctx).
		Where("instrument_id = ? AND enabled = ? AND allow_validation = ? AND validation_active = ?",
			instrumentID, true, true, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
