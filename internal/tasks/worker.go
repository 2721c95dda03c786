package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
	"github.com/tesla-ce/trust-backend/internal/utils"
)

// Worker polls a set of queues and runs registered handlers. Failed tasks are
// requeued with a delay until attempts run out.
type Worker struct {
	log      *logger.Logger
	repo     repos.TaskRunRepo
	registry *Registry
	queues   []string

	maxAttempts  int
	retryDelay   time.Duration
	staleRunning time.Duration
}

func NewWorker(baseLog *logger.Logger, repo repos.TaskRunRepo, registry *Registry, queues []string) *Worker {
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}
	return &Worker{
		log:          baseLog.With("component", "TaskWorker"),
		repo:         repo,
		registry:     registry,
		queues:       queues,
		maxAttempts:  5,
		retryDelay:   30 * time.Second,
		staleRunning: 30 * time.Minute,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, w.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting task worker pool", "concurrency", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			task, err := w.repo.ClaimNextRunnable(ctx, w.queues, time.Now().Add(-w.staleRunning))
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if task == nil {
				continue
			}
			w.runTask(ctx, workerID, task)
		}
	}
}

func (w *Worker) runTask(ctx context.Context, workerID int, task *types.TaskRun) {
	tracer := otel.Tracer("trust-backend/tasks")
	taskCtx, span := tracer.Start(ctx, task.TaskName)
	span.SetAttributes(
		attribute.String("task.id", task.ID.String()),
		attribute.String("task.queue", task.Queue),
		attribute.Int("task.attempts", task.Attempts),
	)
	defer span.End()

	handler, ok := w.registry.Get(task.TaskName)
	if !ok {
		w.log.Warn("No handler registered for task",
			"worker_id", workerID,
			"task", task.TaskName,
			"task_id", task.ID,
		)
		err := fmt.Errorf("no handler registered for task=%s", task.TaskName)
		span.SetStatus(codes.Error, err.Error())
		w.fail(ctx, task, err)
		return
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Task handler panic",
					"worker_id", workerID,
					"task_id", task.ID,
					"task", task.TaskName,
					"panic", r,
				)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		runErr = handler(taskCtx, json.RawMessage(task.Args))
	}()

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		w.fail(ctx, task, runErr)
		return
	}
	if err := w.repo.MarkDone(ctx, nil, task.ID); err != nil {
		w.log.Warn("MarkDone failed", "task_id", task.ID, "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, task *types.TaskRun, taskErr error) {
	exhausted := task.Attempts >= w.maxAttempts
	runAt := time.Now().Add(w.retryDelay)
	if err := w.repo.MarkFailed(ctx, nil, task.ID, taskErr, runAt, exhausted); err != nil {
		w.log.Warn("MarkFailed failed", "task_id", task.ID, "error", err)
	}
	if exhausted {
		w.log.Error("Task failed permanently",
			"task_id", task.ID,
			"task", task.TaskName,
			"attempts", task.Attempts,
			"error", taskErr,
		)
	}
}
