package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type ActivityRepo interface {
	Create(ctx context.Context, tx *gorm.DB, activities []*types.Activity) ([]*types.Activity, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	CreateInstruments(ctx context.Context, tx *gorm.DB, rows []*types.ActivityInstrument) ([]*types.ActivityInstrument, error)
	ListInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error)
	ListActiveInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error)
	DeleteInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) error
}

type activityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRepo {
	return &activityRepo{db: db, log: baseLog.With("repo", "ActivityRepo")}
}

func (r *activityRepo) Create(ctx context.Context, tx *gorm.DB, activities []*types.Activity) ([]*types.Activity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(activities) == 0 {
		return []*types.Activity{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var activity types.Activity
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&activity).Error
	if err != nil {
		return nil, err
	}
	if activity.ID == uuid.Nil {
		return nil, nil
	}
	return &activity, nil
}

func (r *activityRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Activity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *activityRepo) CreateInstruments(ctx context.Context, tx *gorm.DB, rows []*types.ActivityInstrument) ([]*types.ActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ActivityInstrument{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityRepo) ListInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityInstrument
	if err := transaction.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) ListActiveInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityInstrument
	if err := transaction.WithContext(ctx).
		Where("activity_id = ? AND active = ?", activityID, true).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRepo) DeleteInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("activity_id = ? AND instrument_id = ?", activityID, instrumentID).
		Delete(&types.ActivityInstrument{}).Error
}
