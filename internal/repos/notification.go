package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type NotificationRepo interface {
	// Upsert writes or replaces the notification for (provider, key).
	Upsert(ctx context.Context, tx *gorm.DB, notification *types.ProviderNotification) (*types.ProviderNotification, error)
	GetByProviderKey(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) (*types.ProviderNotification, error)
	ListByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID) ([]*types.ProviderNotification, error)
	ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.ProviderNotification, error)
	Reschedule(ctx context.Context, tx *gorm.DB, id uuid.UUID, when time.Time) error
	Delete(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) error
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Upsert(ctx context.Context, tx *gorm.DB, notification *types.ProviderNotification) (*types.ProviderNotification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_id"}, {Name: "key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"info":       datatypes.JSON(notification.Info),
				"when":       notification.When,
				"updated_at": time.Now(),
			}),
		}).
		Create(notification).Error
	if err != nil {
		return nil, err
	}
	return notification, nil
}

func (r *notificationRepo) GetByProviderKey(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) (*types.ProviderNotification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var notification types.ProviderNotification
	err := transaction.WithContext(ctx).
		Where("provider_id = ? AND key = ?", providerID, key).
		Limit(1).
		Find(&notification).Error
	if err != nil {
		return nil, err
	}
	if notification.ID == uuid.Nil {
		return nil, nil
	}
	return &notification, nil
}

func (r *notificationRepo) ListByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID) ([]*types.ProviderNotification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProviderNotification
	if err := transaction.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("\"when\" ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.ProviderNotification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.ProviderNotification
	if err := transaction.WithContext(ctx).
		Where("\"when\" <= ?", now).
		Order("\"when\" ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) Reschedule(ctx context.Context, tx *gorm.DB, id uuid.UUID, when time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ProviderNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"when":       when,
			"updated_at": time.Now(),
		}).Error
}

func (r *notificationRepo) Delete(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("provider_id = ? AND key = ?", providerID, key).
		Delete(&types.ProviderNotification{}).Error
}
