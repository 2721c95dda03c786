package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type InstitutionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, institutions []*types.Institution) ([]*types.Institution, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Institution, error)
}

type institutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstitutionRepo(db *gorm.DB, baseLog *logger.Logger) InstitutionRepo {
	return &institutionRepo{db: db, log: baseLog.With("repo", "InstitutionRepo")}
}

func (r *institutionRepo) Create(ctx context.Context, tx *gorm.DB, institutions []*types.Institution) ([]*types.Institution, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(institutions) == 0 {
		return []*types.Institution{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&institutions).Error; err != nil {
		return nil, err
	}
	return institutions, nil
}

func (r *institutionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Institution, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var institution types.Institution
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&institution).Error
	if err != nil {
		return nil, err
	}
	if institution.ID == uuid.Nil {
		return nil, nil
	}
	return &institution, nil
}
