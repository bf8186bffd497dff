// Package queue implements the durable job queue worker: claim, dispatch,
// retry with backoff, and follow-up scheduling. Task rows are the only shared
// structure needing locking discipline; claiming uses row-level skip-locked
// semantics in the store so concurrent workers never contend.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/logger"
)

// Handler executes one claimed task. Handlers must be idempotent: a
// cancellation or retry racing with in-flight execution must not corrupt state.
type Handler func(ctx context.Context, task *domain.Task) (*Result, error)

// Result is what a successful handler hands back to the worker.
type Result struct {
	Output    domain.JSONMap
	FollowUps []FollowUp
}

// FollowUp declares a task the worker should enqueue after success. Follow-ups
// are deduplicated against pending tasks of the same type and scope.
type FollowUp struct {
	Type       domain.TaskType
	EntityType string
	EntityID   string
	Payload    domain.JSONMap
	Priority   int
	Delay      time.Duration
}

// RetryAfterError wraps a handler error with a provider-supplied retry hint.
// The hint takes precedence over the worker's computed backoff.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %s: %v", e.After, e.Err)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// TaskStore abstracts the durable task table the worker drives.
// Implementations must guarantee that two concurrent ClaimNext calls never
// return the same task, and that the three outcome transitions apply only
// while the row is still RUNNING — their bool result reports whether the
// transition happened, so a task cancelled mid-flight stays cancelled.
type TaskStore interface {
	ClaimNext(ctx context.Context, batchSize int, now time.Time) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	HasPending(ctx context.Context, taskType domain.TaskType, entityType, entityID string) (bool, error)
	MarkSucceeded(ctx context.Context, task *domain.Task, result domain.JSONMap, now time.Time) (bool, error)
	Reschedule(ctx context.Context, task *domain.Task, errMsg string, runAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, task *domain.Task, errMsg string, now time.Time) (bool, error)
}

// Config holds worker tuning knobs.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Worker polls the queue, claims batches, and dispatches tasks to handlers.
type Worker struct {
	store    TaskStore
	handlers map[domain.TaskType]Handler
	backoff  *Backoff
	logger   *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewWorker creates a worker and validates the handler table exhaustively:
// every declared task type must have a handler, so an unknown-type task can
// only come from bad data, never from incomplete wiring.
// Parameters:
//   - store: durable task store.
//   - handlers: dispatch table keyed by task type.
//   - backoff: retry delay calculator.
//   - log: base logger.
//   - cfg: worker tuning; zero values get defaults.
// Returns:
//   - *Worker: initialized worker.
//   - error: non-nil if the handler table is incomplete.
func NewWorker(store TaskStore, handlers map[domain.TaskType]Handler, backoff *Backoff, log *logger.Logger, cfg Config) (*Worker, error) {
	for _, tt := range domain.TaskTypes() {
		if _, ok := handlers[tt]; !ok {
			return nil, fmt.Errorf("no handler registered for task type %q", tt)
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Worker{
		store:    store,
		handlers: handlers,
		backoff:  backoff,
		logger:   log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// log returns a logger from context if available, otherwise the worker's own.
func (w *Worker) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return w.logger
}

// Run polls the queue until ctx is cancelled. Each cycle claims one batch and
// executes the claimed tasks concurrently; the next poll waits for the batch
// to finish so a slow handler cannot pile up unbounded goroutines.
// Parameters:
//   - ctx: cancellation context.
// Returns:
//   - error: always nil today; reserved for fatal store errors.
func (w *Worker) Run(ctx context.Context) error {
	w.log(ctx).WithFields(logger.Fields{
		"poll_interval": w.cfg.PollInterval.String(),
		"batch_size":    w.cfg.BatchSize,
	}).Info("Worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.runCycle(ctx)
		select {
		case <-ctx.Done():
			w.log(ctx).Info("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims and executes a single batch, then returns. Lets cron-style
// deployments drain the queue without a resident process.
func (w *Worker) RunOnce(ctx context.Context) {
	w.runCycle(ctx)
}

// runCycle claims one batch and executes it.
func (w *Worker) runCycle(ctx context.Context) {
	tasks, err := w.store.ClaimNext(ctx, w.cfg.BatchSize, w.now())
	if err != nil {
		w.log(ctx).WithError(err).Error("Failed to claim tasks")
		return
	}
	if len(tasks) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range tasks {
		wg.Add(1)
		go func(task *domain.Task) {
			defer wg.Done()
			w.Execute(ctx, task)
		}(&tasks[i])
	}
	wg.Wait()
}

// Execute dispatches one claimed task and records the outcome. Exported so
// tests and one-shot tools can drive a task through without the poll loop.
func (w *Worker) Execute(ctx context.Context, task *domain.Task) {
	taskCtx := logger.WithFields(ctx, logger.Fields{
		logger.FieldTaskID:    task.ID,
		logger.FieldComponent: "worker",
	})
	log := w.log(taskCtx).WithFields(logger.Fields{
		"type":    string(task.Type),
		"attempt": task.Attempts,
	})

	handler, ok := w.handlers[task.Type]
	if !ok {
		// Only reachable via a row written by a newer or older deploy;
		// retrying cannot help, so fail terminally.
		msg := fmt.Sprintf("unknown task type %q", task.Type)
		task.AppendLog(w.now(), "error", msg)
		if _, err := w.store.MarkFailed(ctx, task, msg, w.now()); err != nil {
			log.WithError(err).Error("Failed to record unknown-type failure")
		}
		log.Error(msg)
		return
	}

	result, err := handler(taskCtx, task)
	if err != nil {
		w.recordFailure(ctx, task, err, log)
		return
	}

	var output domain.JSONMap
	if result != nil {
		output = result.Output
	}
	task.AppendLog(w.now(), "info", "completed")
	applied, err := w.store.MarkSucceeded(ctx, task, output, w.now())
	if err != nil {
		log.WithError(err).Error("Failed to record task success")
		return
	}
	if !applied {
		// Cancelled while the handler was in flight; the handler's writes
		// stand (they are idempotent), but the task stays cancelled and no
		// follow-ups are enqueued.
		log.Warn("Task was cancelled during execution, outcome discarded")
		return
	}
	if result != nil {
		w.enqueueFollowUps(ctx, task, result.FollowUps, log)
	}
	log.Info("Task succeeded")
}

// recordFailure reschedules the task with backoff when attempts remain,
// otherwise marks it failed terminally. Provider retry hints override the
// computed backoff delay.
func (w *Worker) recordFailure(ctx context.Context, task *domain.Task, taskErr error, log *logger.Logger) {
	now := w.now()
	task.AppendLog(now, "error", taskErr.Error())

	if task.Attempts < task.MaxAttempts {
		delay := w.backoff.Next(task.Attempts)
		var hint *RetryAfterError
		if errors.As(taskErr, &hint) && hint.After > 0 {
			delay = hint.After
		}
		runAt := now.Add(delay)
		applied, err := w.store.Reschedule(ctx, task, taskErr.Error(), runAt)
		if err != nil {
			log.WithError(err).Error("Failed to reschedule task")
			return
		}
		if !applied {
			log.Warn("Task was cancelled during execution, retry discarded")
			return
		}
		log.WithFields(logger.Fields{
			"retry_in": delay.String(),
		}).WithError(taskErr).Warn("Task failed, retrying")
		return
	}

	applied, err := w.store.MarkFailed(ctx, task, taskErr.Error(), now)
	if err != nil {
		log.WithError(err).Error("Failed to record task failure")
		return
	}
	if !applied {
		log.Warn("Task was cancelled during execution, failure discarded")
		return
	}
	log.WithError(taskErr).Error("Task failed terminally")
}

// enqueueFollowUps creates the declared follow-up tasks, skipping any scope
// that already has a pending task of the same type.
func (w *Worker) enqueueFollowUps(ctx context.Context, parent *domain.Task, followUps []FollowUp, log *logger.Logger) {
	for _, fu := range followUps {
		exists, err := w.store.HasPending(ctx, fu.Type, fu.EntityType, fu.EntityID)
		if err != nil {
			log.WithError(err).Error("Failed to check pending follow-ups")
			continue
		}
		if exists {
			continue
		}
		next := &domain.Task{
			Type:         fu.Type,
			EntityType:   fu.EntityType,
			EntityID:     fu.EntityID,
			Payload:      fu.Payload,
			Priority:     fu.Priority,
			MaxAttempts:  parent.MaxAttempts,
			ScheduledFor: w.now().Add(fu.Delay),
			CreatedBy:    "worker:" + parent.ID,
		}
		if err := w.store.Create(ctx, next); err != nil {
			log.WithError(err).Error("Failed to enqueue follow-up task")
			continue
		}
		log.WithFields(logger.Fields{
			"follow_up": string(fu.Type),
		}).Info("Follow-up task enqueued")
	}
}
