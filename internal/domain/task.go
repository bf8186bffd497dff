package domain

import "time"

// TaskType identifies which handler a queued task is dispatched to.
// The set is closed: a worker refuses to start unless every type has a handler.
type TaskType string

const (
	TaskTypeItemSync         TaskType = "item_sync"
	TaskTypeFeatureRecompute TaskType = "feature_recompute"
)

// TaskTypes returns every task type the worker must be able to dispatch.
// Parameters: none.
// Returns:
//   - []TaskType: all declared task types.
func TaskTypes() []TaskType {
	return []TaskType{TaskTypeItemSync, TaskTypeFeatureRecompute}
}

// TaskStatus represents the lifecycle status of a queued task.
// Transitions are monotonic: pending -> running -> {succeeded | pending (retry) | failed},
// and any non-terminal status -> cancelled.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is a durable unit of background work.
// Rows are created by API triggers or pipeline follow-ups and mutated
// exclusively by the worker.
type Task struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Type         TaskType   `gorm:"type:text;not null;index" json:"type"`
	EntityType   string     `gorm:"type:text;not null;index:idx_tasks_scope" json:"entity_type"`
	EntityID     string     `gorm:"type:text;index:idx_tasks_scope" json:"entity_id"`
	Payload      JSONMap    `gorm:"type:text" json:"payload"`
	Status       TaskStatus `gorm:"type:text;default:pending;index:idx_tasks_claim" json:"status"`
	Priority     int        `gorm:"default:0" json:"priority"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	MaxAttempts  int        `gorm:"default:3" json:"max_attempts"`
	ScheduledFor time.Time  `gorm:"index:idx_tasks_claim" json:"scheduled_for"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Result       JSONMap    `gorm:"type:text" json:"result"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	Log          TaskLog    `gorm:"type:text" json:"log"`
	CreatedBy    string     `gorm:"type:text" json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Task.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Task) TableName() string {
	return "tasks"
}

// AppendLog adds one entry to the task's cumulative log.
// The log is never truncated or overwritten; every attempt adds to it.
func (t *Task) AppendLog(at time.Time, level, message string) {
	t.Log = append(t.Log, TaskLogEntry{
		At:      at,
		Attempt: t.Attempts,
		Level:   level,
		Message: message,
	})
}
