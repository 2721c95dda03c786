package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// Redispatch backoff after a sweep picks a notification up, so a failing
// replay cannot storm the queue between sweeps.
const notificationRedispatch = 5 * time.Minute

// Notification targets. Info fully describes the eventual write, so replay
// performs exactly the write the provider would have performed synchronously.
const (
	NotificationTargetResult     = "request_result"
	NotificationTargetValidation = "sample_validation"
)

// NotificationInfo is the decoded shape of ProviderNotification.Info.
type NotificationInfo struct {
	Target     string             `json:"target"`
	RequestID  *uuid.UUID         `json:"request_id,omitempty"`
	SampleID   *uuid.UUID         `json:"sample_id,omitempty"`
	Result     *ResultPayload     `json:"result,omitempty"`
	Validation *ValidationPayload `json:"validation,omitempty"`
}

// NotificationService implements the deferred provider write protocol: file,
// sweep, replay, delete.
type NotificationService interface {
	Defer(ctx context.Context, providerID uuid.UUID, key string, when time.Time, info NotificationInfo) (*types.ProviderNotification, error)
	List(ctx context.Context, providerID uuid.UUID) ([]*types.ProviderNotification, error)
	Delete(ctx context.Context, providerID uuid.UUID, key string) error
	// SweepDue dispatches every due notification to its provider's queue.
	SweepDue(ctx context.Context) (int, error)
	// Replay performs the stored write and deletes the notification.
	Replay(ctx context.Context, providerID uuid.UUID, key string) error
}

type notificationService struct {
	db            *gorm.DB
	log           *logger.Logger
	notifications repos.NotificationRepo
	providers     repos.ProviderRepo
	verification  VerificationService
	validation    ValidationService
	dispatcher    tasks.Dispatcher
}

func NewNotificationService(
	db *gorm.DB,
	log *logger.Logger,
	notifications repos.NotificationRepo,
	providers repos.ProviderRepo,
	verification VerificationService,
	validation ValidationService,
	dispatcher tasks.Dispatcher,
) NotificationService {
	return &notificationService{
		db:            db,
		log:           log.With("service", "NotificationService"),
		notifications: notifications,
		providers:     providers,
		verification:  verification,
		validation:    validation,
		dispatcher:    dispatcher,
	}
}

func (s *notificationService) Defer(ctx context.Context, providerID uuid.UUID, key string, when time.Time, info NotificationInfo) (*types.ProviderNotification, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: notification key required", pkgerrors.ErrInvalidArgument)
	}
	switch info.Target {
	case NotificationTargetResult:
		if info.RequestID == nil || info.Result == nil {
			return nil, fmt.Errorf("%w: result notification requires request_id and result payload", pkgerrors.ErrInvalidArgument)
		}
	case NotificationTargetValidation:
		if info.SampleID == nil || info.Validation == nil {
			return nil, fmt.Errorf("%w: validation notification requires sample_id and validation payload", pkgerrors.ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("%w: unknown notification target %q", pkgerrors.ErrInvalidArgument, info.Target)
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return s.notifications.Upsert(ctx, nil, &types.ProviderNotification{
		ProviderID: providerID,
		Key:        key,
		Info:       datatypes.JSON(raw),
		When:       when,
	})
}

func (s *notificationService) List(ctx context.Context, providerID uuid.UUID) ([]*types.ProviderNotification, error) {
	return s.notifications.ListByProvider(ctx, nil, providerID)
}

func (s *notificationService) Delete(ctx context.Context, providerID uuid.UUID, key string) error {
	return s.notifications.Delete(ctx, nil, providerID, key)
}

func (s *notificationService) SweepDue(ctx context.Context) (int, error) {
	due, err := s.notifications.ListDue(ctx, nil, timeNow(), 100)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, notification := range due {
		provider, err := s.providers.GetByID(ctx, nil, notification.ProviderID)
		if err != nil {
			return dispatched, err
		}
		if provider == nil {
			s.log.Warn("Notification for unknown provider", "notification_id", notification.ID)
			continue
		}
		err = withTransaction(s.db, func(tx *gorm.DB) error {
			if err := s.dispatcher.DispatchProviderNotify(ctx, tx, provider.Queue, tasks.ProviderNotifyArgs{
				NotificationID: notification.ID,
				ProviderID:     provider.ID,
				Key:            notification.Key,
			}, timeNow()); err != nil {
				return err
			}
			// Push the due time forward so the next sweep does not re-dispatch
			// while the replay is in flight.
			return s.notifications.Reschedule(ctx, tx, notification.ID, timeNow().Add(notificationRedispatch))
		})
		if err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

func (s *notificationService) Replay(ctx context.Context, providerID uuid.UUID, key string) error {
	notification, err := s.notifications.GetByProviderKey(ctx, nil, providerID, key)
	if err != nil {
		return err
	}
	if notification == nil {
		// Already replayed and deleted; at-least-once delivery makes this normal.
		return nil
	}

	var info NotificationInfo
	if err := json.Unmarshal(notification.Info, &info); err != nil {
		return fmt.Errorf("bad notification info for %s/%s: %w", providerID, key, err)
	}

	switch info.Target {
	case NotificationTargetResult:
		err = s.verification.PutProviderResult(ctx, *info.RequestID, notification.ProviderID, *info.Result)
	case NotificationTargetValidation:
		err = s.validation.PutValidation(ctx, *info.SampleID, notification.ProviderID, *info.Validation)
	default:
		return fmt.Errorf("unknown notification target %q", info.Target)
	}
	if err != nil {
		return err
	}
	return s.notifications.Delete(ctx, nil, notification.ProviderID, notification.Key)
}
