package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type LearnerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, learners []*types.Learner) ([]*types.Learner, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Learner, error)
	GetByLearnerID(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) (*types.Learner, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type learnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerRepo(db *gorm.DB, baseLog *logger.Logger) LearnerRepo {
	return &learnerRepo{db: db, log: baseLog.With("repo", "LearnerRepo")}
}

func (r *learnerRepo) Create(ctx context.Context, tx *gorm.DB, learners []*types.Learner) ([]*types.Learner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(learners) == 0 {
		return []*types.Learner{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&learners).Error; err != nil {
		return nil, err
	}
	return learners, nil
}

func (r *learnerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Learner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var learner types.Learner
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&learner).Error
	if err != nil {
		return nil, err
	}
	if learner.ID == uuid.Nil {
		return nil, nil
	}
	return &learner, nil
}

func (r *learnerRepo) GetByLearnerID(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) (*types.Learner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var learner types.Learner
	err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Limit(1).
		Find(&learner).Error
	if err != nil {
		return nil, err
	}
	if learner.ID == uuid.Nil {
		return nil, nil
	}
	return &learner, nil
}

func (r *learnerRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Learner{}).
		Where("id = ?", id).
		Updates(updates).Error
}
