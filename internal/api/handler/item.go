package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/calum/marketsync/internal/repository"
)

// ItemHandler serves the materialized item views: current state, snapshot
// history, and rolling features.
type ItemHandler struct {
	current  *repository.CurrentStateRepository
	snaps    *repository.SnapshotRepository
	features *repository.FeatureRepository
}

// NewItemHandler creates a new item handler.
// Parameters:
//   - current: current-state repository.
//   - snaps: snapshot repository.
//   - features: feature repository.
// Returns:
//   - *ItemHandler: initialized handler.
func NewItemHandler(current *repository.CurrentStateRepository, snaps *repository.SnapshotRepository, features *repository.FeatureRepository) *ItemHandler {
	return &ItemHandler{
		current:  current,
		snaps:    snaps,
		features: features,
	}
}

// ListItems handles GET /api/v1/items.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ItemHandler) ListItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.current.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list items: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// GetItem handles GET /api/v1/items/:asin.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ItemHandler) GetItem(c *gin.Context) {
	asin, marketplaceID, ok := itemScope(c)
	if !ok {
		return
	}

	state, err := h.current.Get(c.Request.Context(), asin, marketplaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load item: " + err.Error(),
		})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Item not found",
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetItemSnapshots handles GET /api/v1/items/:asin/snapshots.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ItemHandler) GetItemSnapshots(c *gin.Context) {
	asin, marketplaceID, ok := itemScope(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	snaps, err := h.snaps.ListByItem(c.Request.Context(), asin, marketplaceID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load snapshots: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// GetItemFeatures handles GET /api/v1/items/:asin/features.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ItemHandler) GetItemFeatures(c *gin.Context) {
	asin, marketplaceID, ok := itemScope(c)
	if !ok {
		return
	}

	feature, err := h.features.Get(c.Request.Context(), asin, marketplaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load features: " + err.Error(),
		})
		return
	}
	if feature == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No features computed for item",
		})
		return
	}

	c.JSON(http.StatusOK, feature)
}

// itemScope extracts the (asin, marketplace_id) pair every item route needs.
// Writes a 400 response and returns ok=false when the request is malformed.
func itemScope(c *gin.Context) (string, int, bool) {
	asin := c.Param("asin")
	if asin == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "ASIN is required",
		})
		return "", 0, false
	}
	marketplaceID, err := strconv.Atoi(c.DefaultQuery("marketplace_id", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "marketplace_id must be an integer",
		})
		return "", 0, false
	}
	return asin, marketplaceID, true
}
