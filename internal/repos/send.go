package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type SENDRepo interface {
	CreateCategories(ctx context.Context, tx *gorm.DB, categories []*types.SENDCategory) ([]*types.SENDCategory, error)
	GetCategoryByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SENDCategory, error)
	AssignLearner(ctx context.Context, tx *gorm.DB, rows []*types.SENDLearner) ([]*types.SENDLearner, error)
	RemoveLearner(ctx context.Context, tx *gorm.DB, learnerID, categoryID uuid.UUID) error
	ListActiveByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, now time.Time) ([]*types.SENDLearner, error)
	GetCategoriesByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SENDCategory, error)
}

type sendRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSENDRepo(db *gorm.DB, baseLog *logger.Logger) SENDRepo {
	return &sendRepo{db: db, log: baseLog.With("repo", "SENDRepo")}
}

func (r *sendRepo) CreateCategories(ctx context.Context, tx *gorm.DB, categories []*types.SENDCategory) ([]*types.SENDCategory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(categories) == 0 {
		return []*types.SENDCategory{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *sendRepo) GetCategoryByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SENDCategory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var category types.SENDCategory
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == uuid.Nil {
		return nil, nil
	}
	return &category, nil
}

func (r *sendRepo) AssignLearner(ctx context.Context, tx *gorm.DB, rows []*types.SENDLearner) ([]*types.SENDLearner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.SENDLearner{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sendRepo) RemoveLearner(ctx context.Context, tx *gorm.DB, learnerID, categoryID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("learner_id = ? AND category_id = ?", learnerID, categoryID).
		Delete(&types.SENDLearner{}).Error
}

func (r *sendRepo) ListActiveByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, now time.Time) ([]*types.SENDLearner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SENDLearner
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND (expires_at IS NULL OR expires_at > ?)", learnerID, now).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sendRepo) GetCategoriesByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SENDCategory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SENDCategory
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
