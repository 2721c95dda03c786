package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type InstrumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, instruments []*types.Instrument) ([]*types.Instrument, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Instrument, error)
	GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Instrument, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Instrument, error)
}

type instrumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstrumentRepo(db *gorm.DB, baseLog *logger.Logger) InstrumentRepo {
	return &instrumentRepo{db: db, log: baseLog.With("repo", "InstrumentRepo")}
}

func (r *instrumentRepo) Create(ctx context.Context, tx *gorm.DB, instruments []*types.Instrument) ([]*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(instruments) == 0 {
		return []*types.Instrument{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&instruments).Error; err != nil {
		return nil, err
	}
	return instruments, nil
}

func (r *instrumentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Instrument
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

func (r *instrumentRepo) GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var instrument types.Instrument
	err := transaction.WithContext(ctx).
		Where("acronym = ?", acronym).
		Limit(1).
		Find(&instrument).Error
	if err != nil {
		return nil, err
	}
	if instrument.ID == uuid.Nil {
		return nil, nil
	}
	return &instrument, nil
}

func (r *instrumentRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Instrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Instrument
	if err := transaction.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
