package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type InformedConsentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, consents []*types.InformedConsent) ([]*types.InformedConsent, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InformedConsent, error)
	ListActiveByInstitution(ctx context.Context, tx *gorm.DB, institutionID uuid.UUID, now time.Time) ([]*types.InformedConsent, error)
}

type informedConsentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInformedConsentRepo(db *gorm.DB, baseLog *logger.Logger) InformedConsentRepo {
	return &informedConsentRepo{db: db, log: baseLog.With("repo", "InformedConsentRepo")}
}

func (r *informedConsentRepo) Create(ctx context.Context, tx *gorm.DB, consents []*types.InformedConsent) ([]*types.InformedConsent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(consents) == 0 {
		return []*types.InformedConsent{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&consents).Error; err != nil {
		return nil, err
	}
	return consents, nil
}

func (r *informedConsentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InformedConsent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var consent types.InformedConsent
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&consent).Error
	if err != nil {
		return nil, err
	}
	if consent.ID == uuid.Nil {
		return nil, nil
	}
	return &consent, nil
}

func (r *informedConsentRepo) ListActiveByInstitution(ctx context.Context, tx *gorm.DB, institutionID uuid.UUID, now time.Time) ([]*types.InformedConsent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.InformedConsent
	err := transaction.WithContext(ctx).
		Where("institution_id = ? AND valid_from <= ?", institutionID, now).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
