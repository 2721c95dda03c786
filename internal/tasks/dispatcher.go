package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// Dispatcher enqueues asynchronous work. Passing the caller's tx makes the
// enqueue atomic with the state change that triggered it.
type Dispatcher interface {
	DispatchVerifyRequest(ctx context.Context, tx *gorm.DB, args VerifyRequestArgs) error
	DispatchProviderVerify(ctx context.Context, tx *gorm.DB, queue string, args ProviderVerifyArgs) error
	DispatchVerificationSummary(ctx context.Context, tx *gorm.DB, args VerificationSummaryArgs) error
	DispatchInstrumentReportUpdate(ctx context.Context, tx *gorm.DB, args InstrumentReportUpdateArgs) error
	DispatchActivityReportUpdate(ctx context.Context, tx *gorm.DB, args ActivityReportUpdateArgs) error
	DispatchSampleValidate(ctx context.Context, tx *gorm.DB, queue string, args SampleValidateArgs) error
	DispatchValidationSummary(ctx context.Context, tx *gorm.DB, args ValidationSummaryArgs, schedule Schedule) error
	DispatchEnrolmentUpdate(ctx context.Context, tx *gorm.DB, queue string, args EnrolmentUpdateArgs) error
	DispatchProviderNotify(ctx context.Context, tx *gorm.DB, queue string, args ProviderNotifyArgs, runAt time.Time) error
}

type dbDispatcher struct {
	repo repos.TaskRunRepo
	log  *logger.Logger
}

func NewDispatcher(repo repos.TaskRunRepo, baseLog *logger.Logger) Dispatcher {
	return &dbDispatcher{repo: repo, log: baseLog.With("component", "TaskDispatcher")}
}

func (d *dbDispatcher) enqueue(ctx context.Context, tx *gorm.DB, taskName, queue string, args interface{}, runAt time.Time) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal %s args: %w", taskName, err)
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if runAt.IsZero() {
		runAt = time.Now()
	}
	task := &types.TaskRun{
		ID:       uuid.New(),
		TaskName: taskName,
		Queue:    queue,
		Args:     datatypes.JSON(raw),
		Status:   types.TaskStatusQueued,
		RunAt:    runAt,
	}
	if _, err := d.repo.Enqueue(ctx, tx, []*types.TaskRun{task}); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskName, err)
	}
	return nil
}

func (d *dbDispatcher) DispatchVerifyRequest(ctx context.Context, tx *gorm.DB, args VerifyRequestArgs) error {
	return d.enqueue(ctx, tx, TaskVerifyRequest, DefaultQueue, args, time.Time{})
}

func (d *dbDispatcher) DispatchProviderVerify(ctx context.Context, tx *gorm.DB, queue string, args ProviderVerifyArgs) error {
	return d.enqueue(ctx, tx, TaskProviderVerify, queue, args, time.Time{})
}

func (d *dbDispatcher) DispatchVerificationSummary(ctx context.Context, tx *gorm.DB, args VerificationSummaryArgs) error {
	return d.enqueue(ctx, tx, TaskVerificationSummary, DefaultQueue, args, time.Time{})
}

func (d *dbDispatcher) DispatchInstrumentReportUpdate(ctx context.Context, tx *gorm.DB, args InstrumentReportUpdateArgs) error {
	return d.enqueue(ctx, tx, TaskInstrumentReportUpdate, DefaultQueue, args, time.Time{})
}

func (d *dbDispatcher) DispatchActivityReportUpdate(ctx context.Context, tx *gorm.DB, args ActivityReportUpdateArgs) error {
	return d.enqueue(ctx, tx, TaskActivityReportUpdate, DefaultQueue, args, time.Time{})
}

func (d *dbDispatcher) DispatchSampleValidate(ctx context.Context, tx *gorm.DB, queue string, args SampleValidateArgs) error {
	return d.enqueue(ctx, tx, TaskSampleValidate, queue, args, time.Time{})
}

func (d *dbDispatcher) DispatchValidationSummary(ctx context.Context, tx *gorm.DB, args ValidationSummaryArgs, schedule Schedule) error {
	return d.enqueue(ctx, tx, TaskValidationSummary, DefaultQueue, args, schedule.RunAt)
}

func (d *dbDispatcher) DispatchEnrolmentUpdate(ctx context.Context, tx *gorm.DB, queue string, args EnrolmentUpdateArgs) error {
	return d.enqueue(ctx, tx, TaskEnrolmentUpdate, queue, args, time.Time{})
}

func (d *dbDispatcher) DispatchProviderNotify(ctx context.Context, tx *gorm.DB, queue string, args ProviderNotifyArgs, runAt time.Time) error {
	return d.enqueue(ctx, tx, TaskProviderNotify, queue, args, runAt)
}
