package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TaskRun is one unit of asynchronous work on a named queue. Delivery is
// at-least-once: a claimed task that fails or goes stale becomes runnable
// again, so every handler must be idempotent.
type TaskRun struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TaskName string         `gorm:"not null;index;column:task_name" json:"task_name"`
	Queue    string         `gorm:"not null;index;column:queue" json:"queue"`
	Args     datatypes.JSON `gorm:"column:args" json:"args"`

	Status   string `gorm:"not null;default:'queued';index;column:status" json:"status"`
	Attempts int    `gorm:"not null;default:0;column:attempts" json:"attempts"`

	// RunAt delays execution; the claim query skips tasks not yet due.
	RunAt       time.Time  `gorm:"not null;index;column:run_at" json:"run_at"`
	LastError   *string    `gorm:"column:last_error" json:"last_error"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at"`
	LockedAt    *time.Time `gorm:"column:locked_at" json:"locked_at"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TaskRun) TableName() string {
	return "task_run"
}

const (
	TaskStatusQueued  = "queued"
	TaskStatusRunning = "running"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)
