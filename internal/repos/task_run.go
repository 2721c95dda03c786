package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type TaskRunRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, tasks []*types.TaskRun) ([]*types.TaskRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TaskRun, error)
	// ClaimNextRunnable atomically claims the oldest due task on one of the
	// given queues. Tasks whose heartbeat went stale are reclaimed too.
	ClaimNextRunnable(ctx context.Context, queues []string, staleBefore time.Time) (*types.TaskRun, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// MarkFailed requeues the task at runAt, or parks it as failed when
	// attempts are exhausted.
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, taskErr error, runAt time.Time, exhausted bool) error
	CountPending(ctx context.Context, tx *gorm.DB, queue string) (int64, error)
}

type taskRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRunRepo(db *gorm.DB, baseLog *logger.Logger) TaskRunRepo {
	return &taskRunRepo{db: db, log: baseLog.With("repo", "TaskRunRepo")}
}

func (r *taskRunRepo) Enqueue(ctx context.Context, tx *gorm.DB, tasks []*types.TaskRun) ([]*types.TaskRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tasks) == 0 {
		return []*types.TaskRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TaskRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var task types.TaskRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == uuid.Nil {
		return nil, nil
	}
	return &task, nil
}

func (r *taskRunRepo) ClaimNextRunnable(ctx context.Context, queues []string, staleBefore time.Time) (*types.TaskRun, error) {
	if len(queues) == 0 {
		return nil, nil
	}
	var claimed *types.TaskRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task types.TaskRun
		now := time.Now()
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue IN ? AND run_at <= ?", queues, now).
			Where("status = ? OR (status = ? AND heartbeat_at < ?)",
				types.TaskStatusQueued, types.TaskStatusRunning, staleBefore).
			Order("run_at ASC").
			Limit(1).
			Find(&task).Error
		if err != nil {
			return err
		}
		if task.ID == uuid.Nil {
			return nil
		}
		updates := map[string]interface{}{
			"status":       types.TaskStatusRunning,
			"attempts":     task.Attempts + 1,
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}
		if err := tx.Model(&types.TaskRun{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			return err
		}
		task.Status = types.TaskStatusRunning
		task.Attempts++
		task.LockedAt = &now
		task.HeartbeatAt = &now
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *taskRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.TaskRun{}).
		Where("id = ? AND status = ?", id, types.TaskStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *taskRunRepo) MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.TaskRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.TaskStatusDone,
			"locked_at":  nil,
			"updated_at": now,
		}).Error
}

func (r *taskRunRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, taskErr error, runAt time.Time, exhausted bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	status := types.TaskStatusQueued
	if exhausted {
		status = types.TaskStatusFailed
	}
	message := ""
	if taskErr != nil {
		message = taskErr.Error()
	}
	return transaction.WithContext(ctx).
		Model(&types.TaskRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"run_at":        runAt,
			"last_error":    message,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		}).Error
}

func (r *taskRunRepo) CountPending(ctx context.Context, tx *gorm.DB, queue string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.TaskRun{}).
		Where("queue = ? AND status IN ?", queue, []string{types.TaskStatusQueued, types.TaskStatusRunning}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
