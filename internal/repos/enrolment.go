package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type EnrolmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, enrolments []*types.Enrolment) ([]*types.Enrolment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Enrolment, error)
	GetByLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.Enrolment, error)
	ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Enrolment, error)
	ListByLearnerProviders(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, providerIDs []uuid.UUID) ([]*types.Enrolment, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	// AcquireLock atomically claims the model write token. It returns false
	// when another holder owns a non-stale token.
	AcquireLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID, staleBefore time.Time) (bool, error)
	// ReleaseLock clears the token only when held by token.
	ReleaseLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID) (bool, error)

	AddModelSamples(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentModelSample) error
	ListModelSampleIDs(ctx context.Context, tx *gorm.DB, enrolmentID uuid.UUID) ([]uuid.UUID, error)
	ListUsedSampleIDs(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]uuid.UUID, error)
}

type enrolmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrolmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrolmentRepo {
	return &enrolmentRepo{db: db, log: baseLog.With("repo", "EnrolmentRepo")}
}

func (r *enrolmentRepo) Create(ctx context.Context, tx *gorm.DB, enrolments []*types.Enrolment) ([]*types.Enrolment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(enrolments) == 0 {
		return []*types.Enrolment{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&enrolments).Error; err != nil {
		return nil, err
	}
	return enrolments, nil
}

func (r *enrolmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Enrolment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var enrolment types.Enrolment
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&enrolment).Error
	if err != nil {
		return nil, err
	}
	if enrolment.ID == uuid.Nil {
		return nil, nil
	}
	return &enrolment, nil
}

func (r *enrolmentRepo) GetByLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.Enrolment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var enrolment types.Enrolment
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND provider_id = ?", learnerID, providerID).
		Limit(1).
		Find(&enrolment).Error
	if err != nil {
		return nil, err
	}
	if enrolment.ID == uuid.Nil {
		return nil, nil
	}
	return &enrolment, nil
}

func (r *enrolmentRepo) ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Enrolment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Enrolment
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrolmentRepo) ListByLearnerProviders(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, providerIDs []uuid.UUID) ([]*types.Enrolment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Enrolment
	if len(providerIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND provider_id IN ?", learnerID, providerIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrolmentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Enrolment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *enrolmentRepo) AcquireLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID, staleBefore time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.Enrolment{}).
		Where("id = ? AND (locked_at IS NULL OR locked_at < ?)", id, staleBefore).
		Updates(map[string]interface{}{
			"locked_at":  now,
			"locked_by":  token,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *enrolmentRepo) ReleaseLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Enrolment{}).
		Where("id = ? AND locked_by = ?", id, token).
		Updates(map[string]interface{}{
			"locked_at":  nil,
			"locked_by":  nil,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *enrolmentRepo) AddModelSamples(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentModelSample) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *enrolmentRepo) ListModelSampleIDs(ctx context.Context, tx *gorm.DB, enrolmentID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&types.EnrolmentModelSample{}).
		Where("enrolment_id = ?", enrolmentID).
		Pluck("sample_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *enrolmentRepo) ListUsedSampleIDs(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if len(sampleIDs) == 0 {
		return ids, nil
	}
	err := transaction.WithContext(ctx).
		Model(&types.EnrolmentModelSample{}).
		Where("sample_id IN ?", sampleIDs).
		Distinct().
		Pluck("sample_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
