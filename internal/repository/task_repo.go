package repository

import (
	"context"
	"errors"
	"time"

	"github.com/calum/marketsync/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository handles durable task queue operations.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create enqueues a task. Defaults are filled in for missing ID, status,
// max attempts, and schedule time.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: task to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = 3
	}
	if task.ScheduledFor.IsZero() {
		task.ScheduledFor = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// ClaimNext atomically claims up to batchSize runnable tasks. Rows are locked
// with SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers racing for the
// same batch never claim the same task and never block on each other. Each
// claimed task transitions to running with attempts incremented.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchSize: maximum number of tasks to claim.
//   - now: claim timestamp; tasks scheduled after now are skipped.
// Returns:
//   - []domain.Task: claimed tasks, ordered by priority desc then schedule asc.
//   - error: non-nil if the transaction fails.
func (r *TaskRepository) ClaimNext(ctx context.Context, batchSize int, now time.Time) ([]domain.Task, error) {
	var claimed []domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []domain.Task
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_for <= ? AND attempts < max_attempts",
				domain.TaskStatusPending, now).
			Order("priority DESC, scheduled_for ASC").
			Limit(batchSize).
			Find(&tasks).Error; err != nil {
			return err
		}

		for i := range tasks {
			t := &tasks[i]
			t.Status = domain.TaskStatusRunning
			t.Attempts++
			started := now
			t.StartedAt = &started
			if err := tx.Model(&domain.Task{}).
				Where("id = ?", t.ID).
				Updates(map[string]interface{}{
					"status":     t.Status,
					"attempts":   t.Attempts,
					"started_at": t.StartedAt,
				}).Error; err != nil {
				return err
			}
		}

		claimed = tasks
		return nil
	})
	if err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return claimed, nil
}

// MarkSucceeded records a successful execution and persists the result payload
// and cumulative log. The update fires only while the row is still RUNNING:
// a task cancelled mid-flight keeps its terminal CANCELLED status, and the
// caller learns the outcome was discarded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: the claimed task; mutated in place.
//   - result: handler result payload.
//   - now: completion timestamp.
// Returns:
//   - bool: true if the row transitioned; false if it was no longer running.
//   - error: non-nil if the update fails.
func (r *TaskRepository) MarkSucceeded(ctx context.Context, task *domain.Task, result domain.JSONMap, now time.Time) (bool, error) {
	task.Status = domain.TaskStatusSucceeded
	task.Result = result
	finished := now
	task.FinishedAt = &finished
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":      task.Status,
			"result":      task.Result,
			"finished_at": task.FinishedAt,
			"log":         task.Log,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reschedule returns a failed task to pending with a future schedule time.
// The error message and cumulative log are persisted; attempts stay as claimed.
// Guarded on RUNNING so a cancelled task can never be revived into the
// claimable pool.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: the claimed task; mutated in place.
//   - errMsg: failure description for this attempt.
//   - runAt: next eligible claim time.
// Returns:
//   - bool: true if the row transitioned; false if it was no longer running.
//   - error: non-nil if the update fails.
func (r *TaskRepository) Reschedule(ctx context.Context, task *domain.Task, errMsg string, runAt time.Time) (bool, error) {
	task.Status = domain.TaskStatusPending
	task.ErrorMessage = errMsg
	task.ScheduledFor = runAt
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":        task.Status,
			"error_message": task.ErrorMessage,
			"scheduled_for": task.ScheduledFor,
			"log":           task.Log,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed records a terminal failure after the attempt cap is exhausted.
// Guarded on RUNNING like the other outcome transitions.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: the claimed task; mutated in place.
//   - errMsg: failure description.
//   - now: completion timestamp.
// Returns:
//   - bool: true if the row transitioned; false if it was no longer running.
//   - error: non-nil if the update fails.
func (r *TaskRepository) MarkFailed(ctx context.Context, task *domain.Task, errMsg string, now time.Time) (bool, error) {
	task.Status = domain.TaskStatusFailed
	task.ErrorMessage = errMsg
	finished := now
	task.FinishedAt = &finished
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":        task.Status,
			"error_message": task.ErrorMessage,
			"finished_at":   task.FinishedAt,
			"log":           task.Log,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Cancel transitions a pending or running task to cancelled. Terminal tasks
// are left untouched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//   - now: cancellation timestamp.
// Returns:
//   - bool: true if the task was cancelled, false if it was not cancellable.
//   - error: non-nil if the update fails.
func (r *TaskRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND status IN ?", id, []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusRunning}).
		Updates(map[string]interface{}{
			"status":      domain.TaskStatusCancelled,
			"finished_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasPending checks whether a pending task of the given type and scope already
// exists. Used to deduplicate follow-up enqueues so retried pipelines cannot
// flood the queue.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - taskType: task type to match.
//   - entityType: scope entity kind.
//   - entityID: scope entity id.
// Returns:
//   - bool: true if a pending task exists for the scope.
//   - error: non-nil if the lookup fails.
func (r *TaskRepository) HasPending(ctx context.Context, taskType domain.TaskType, entityType, entityID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("type = ? AND entity_type = ? AND entity_id = ? AND status = ?",
			taskType, entityType, entityID, domain.TaskStatusPending).
		Count(&count).Error
	if err != nil {
		if isMissingRelation(err) {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}

// GetByID retrieves a task by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
// Returns:
//   - *domain.Task: task if found, nil if absent.
//   - error: non-nil if the lookup fails.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks, optionally filtered by status, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status filter; empty matches all.
//   - limit: page size.
//   - offset: page offset.
// Returns:
//   - []domain.Task: matching tasks.
//   - error: non-nil if the query fails.
func (r *TaskRepository) List(ctx context.Context, status domain.TaskStatus, limit, offset int) ([]domain.Task, error) {
	q := r.db.WithContext(ctx).Model(&domain.Task{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []domain.Task
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&tasks).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return tasks, nil
}
