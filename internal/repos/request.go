package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type RequestRepo interface {
	Create(ctx context.Context, tx *gorm.DB, requests []*types.Request) ([]*types.Request, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Request, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	ListByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) ([]*types.Request, error)

	AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.RequestInstrument) error
	ListInstrumentIDs(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]uuid.UUID, error)

	CreateSessions(ctx context.Context, tx *gorm.DB, sessions []*types.AssessmentSession) ([]*types.AssessmentSession, error)
	GetSessionByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssessmentSession, error)
	CloseSession(ctx context.Context, tx *gorm.DB, id uuid.UUID, closedAt time.Time) error
}

type requestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequestRepo(db *gorm.DB, baseLog *logger.Logger) RequestRepo {
	return &requestRepo{db: db, log: baseLog.With("repo", "RequestRepo")}
}

func (r *requestRepo) Create(ctx context.Context, tx *gorm.DB, requests []*types.Request) ([]*types.Request, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(requests) == 0 {
		return []*types.Request{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Request, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var request types.Request
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == uuid.Nil {
		return nil, nil
	}
	return &request, nil
}

func (r *requestRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Request{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *requestRepo) ListByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) ([]*types.Request, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Request
	if err := transaction.WithContext(ctx).
		Where("activity_id = ? AND learner_id = ?", activityID, learnerID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requestRepo) AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.RequestInstrument) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *requestRepo) ListInstrumentIDs(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&types.RequestInstrument{}).
		Where("request_id = ?", requestID).
		Pluck("instrument_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *requestRepo) CreateSessions(ctx context.Context, tx *gorm.DB, sessions []*types.AssessmentSession) ([]*types.AssessmentSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.AssessmentSession{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *requestRepo) GetSessionByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssessmentSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.AssessmentSession
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == uuid.Nil {
		return nil, nil
	}
	return &session, nil
}

func (r *requestRepo) CloseSession(ctx context.Context, tx *gorm.DB, id uuid.UUID, closedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AssessmentSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"closed_at":  closedAt,
			"updated_at": time.Now(),
		}).Error
}
