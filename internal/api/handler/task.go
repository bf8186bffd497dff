package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calum/marketsync/internal/api/middleware"
	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/repository"
)

// TaskHandler exposes the job queue: trigger syncs, inspect tasks, cancel them.
type TaskHandler struct {
	tasks       *repository.TaskRepository
	maxAttempts int
}

// NewTaskHandler creates a new task handler.
// Parameters:
//   - tasks: task repository.
//   - maxAttempts: attempt cap stamped on enqueued tasks; <= 0 falls back to
//     the repository default.
// Returns:
//   - *TaskHandler: initialized handler.
func NewTaskHandler(tasks *repository.TaskRepository, maxAttempts int) *TaskHandler {
	return &TaskHandler{tasks: tasks, maxAttempts: maxAttempts}
}

// syncRequest is the body of POST /api/v1/sync.
type syncRequest struct {
	ASIN          string `json:"asin" binding:"required"`
	MarketplaceID int    `json:"marketplace_id" binding:"required"`
	Priority      int    `json:"priority"`
}

// TriggerSync handles POST /api/v1/sync. It enqueues an item_sync task unless
// one is already pending for the same item, so operators mashing the button
// cannot flood the queue.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TaskHandler) TriggerSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	entityID := req.ASIN + ":" + strconv.Itoa(req.MarketplaceID)

	pending, err := h.tasks.HasPending(ctx, domain.TaskTypeItemSync, "item", entityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to check pending tasks: " + err.Error(),
		})
		return
	}
	if pending {
		c.JSON(http.StatusConflict, gin.H{
			"error": "A sync is already pending for this item",
		})
		return
	}

	task := &domain.Task{
		Type:        domain.TaskTypeItemSync,
		EntityType:  "item",
		EntityID:    entityID,
		Priority:    req.Priority,
		MaxAttempts: h.maxAttempts,
		Payload: domain.JSONMap{
			"asin":           req.ASIN,
			"marketplace_id": req.MarketplaceID,
		},
		CreatedBy: "api",
	}
	if err := h.tasks.Create(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue task: " + err.Error(),
		})
		return
	}

	middleware.GetLogger(c).WithField("task_id", task.ID).Info("Sync task enqueued")
	c.JSON(http.StatusAccepted, task)
}

// ListTasks handles GET /api/v1/tasks.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TaskHandler) ListTasks(c *gin.Context) {
	status := domain.TaskStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, err := h.tasks.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list tasks: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// GetTask handles GET /api/v1/tasks/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load task: " + err.Error(),
		})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Task not found",
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// CancelTask handles POST /api/v1/tasks/:id/cancel. Only pending or running
// tasks can be cancelled; a running handler finishes its in-flight work, but
// its outcome no longer transitions the task.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TaskHandler) CancelTask(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := h.tasks.Cancel(c.Request.Context(), id, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel task: " + err.Error(),
		})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Task is not pending or running",
		})
		return
	}

	middleware.GetLogger(c).WithField("task_id", id).Info("Task cancelled")
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": domain.TaskStatusCancelled,
	})
}
