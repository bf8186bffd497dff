package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/repository"
)

// DQHandler exposes data-quality issues to operators.
type DQHandler struct {
	issues *repository.DQIssueRepository
}

// NewDQHandler creates a new data-quality handler.
// Parameters:
//   - issues: issue repository.
// Returns:
//   - *DQHandler: initialized handler.
func NewDQHandler(issues *repository.DQIssueRepository) *DQHandler {
	return &DQHandler{issues: issues}
}

// ListIssues handles GET /api/v1/dq/issues.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DQHandler) ListIssues(c *gin.Context) {
	status := domain.IssueStatus(c.Query("status"))
	asin := c.Query("asin")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	issues, err := h.issues.List(c.Request.Context(), status, asin, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list issues: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues": issues,
		"count":  len(issues),
	})
}

// issueStatusRequest is the body of POST /api/v1/dq/issues/:id/status.
type issueStatusRequest struct {
	Status domain.IssueStatus `json:"status" binding:"required"`
}

// SetIssueStatus handles POST /api/v1/dq/issues/:id/status, moving one issue
// through its operator lifecycle.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *DQHandler) SetIssueStatus(c *gin.Context) {
	var req issueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	switch req.Status {
	case domain.IssueStatusAcknowledged, domain.IssueStatusResolved, domain.IssueStatusIgnored:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Status must be acknowledged, resolved, or ignored",
		})
		return
	}

	id := c.Param("id")
	updated, err := h.issues.SetStatus(c.Request.Context(), id, req.Status, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update issue: " + err.Error(),
		})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Issue not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": req.Status,
	})
}
