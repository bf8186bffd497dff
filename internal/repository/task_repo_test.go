package repository

import (
	"context"
	"testing"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

func TestTaskCreateDefaults(t *testing.T) {
	db := openTestDB(t, &domain.Task{})
	repo := NewTaskRepository(db)
	ctx := context.Background()

	task := &domain.Task{Type: domain.TaskTypeItemSync, EntityType: "item", EntityID: "B00TEST01:1"}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID == "" {
		t.Error("ID not generated")
	}
	if task.Status != domain.TaskStatusPending {
		t.Errorf("status = %s, want pending", task.Status)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", task.MaxAttempts)
	}
	if task.ScheduledFor.IsZero() {
		t.Error("scheduled_for not defaulted")
	}
}

// Cancellation is terminal: once a running task is cancelled, none of the
// outcome transitions may overwrite it, and it must never be claimed again.
func TestTaskOutcomeGuardsAfterCancel(t *testing.T) {
	db := openTestDB(t, &domain.Task{})
	repo := NewTaskRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	task := &domain.Task{Type: domain.TaskTypeItemSync, EntityType: "item", EntityID: "B00TEST01:1"}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := repo.ClaimNext(ctx, 1, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d tasks, want 1", len(claimed))
	}

	ok, err := repo.Cancel(ctx, task.ID, now)
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}

	running := claimed[0]
	if applied, err := repo.Reschedule(ctx, &running, "transient error", now.Add(time.Minute)); err != nil {
		t.Fatalf("reschedule: %v", err)
	} else if applied {
		t.Error("Reschedule applied to a cancelled task")
	}
	if applied, err := repo.MarkSucceeded(ctx, &running, nil, now); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	} else if applied {
		t.Error("MarkSucceeded applied to a cancelled task")
	}
	if applied, err := repo.MarkFailed(ctx, &running, "gave up", now); err != nil {
		t.Fatalf("mark failed: %v", err)
	} else if applied {
		t.Error("MarkFailed applied to a cancelled task")
	}

	got, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TaskStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	if reclaimed, err := repo.ClaimNext(ctx, 10, now.Add(time.Hour)); err != nil {
		t.Fatalf("second claim: %v", err)
	} else if len(reclaimed) != 0 {
		t.Errorf("cancelled task claimed again: %s", reclaimed[0].ID)
	}
}

func TestTaskOutcomeTransitionsWhileRunning(t *testing.T) {
	db := openTestDB(t, &domain.Task{})
	repo := NewTaskRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	task := &domain.Task{Type: domain.TaskTypeItemSync, EntityType: "item", EntityID: "B00TEST01:1"}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	claimed, err := repo.ClaimNext(ctx, 1, now)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d)", err, len(claimed))
	}

	applied, err := repo.MarkSucceeded(ctx, &claimed[0], domain.JSONMap{"ok": true}, now)
	if err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if !applied {
		t.Fatal("MarkSucceeded did not apply to a running task")
	}
	got, _ := repo.GetByID(ctx, task.ID)
	if got.Status != domain.TaskStatusSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not set")
	}
}
