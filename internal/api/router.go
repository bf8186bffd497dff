package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calum/marketsync/internal/api/handler"
	"github.com/calum/marketsync/internal/api/middleware"
	"github.com/calum/marketsync/internal/config"
	"github.com/calum/marketsync/internal/logger"
	"github.com/calum/marketsync/internal/repository"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(db *gorm.DB, log *logger.Logger, cfg *config.Config) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())

	// Create handlers
	healthHandler := handler.NewHealthHandler(db)
	itemHandler := handler.NewItemHandler(
		repository.NewCurrentStateRepository(db),
		repository.NewSnapshotRepository(db),
		repository.NewFeatureRepository(db),
	)
	taskHandler := handler.NewTaskHandler(repository.NewTaskRepository(db), cfg.Worker.MaxAttempts)
	dqHandler := handler.NewDQHandler(repository.NewDQIssueRepository(db))

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Sync trigger
		v1.POST("/sync", taskHandler.TriggerSync)

		// Items
		v1.GET("/items", itemHandler.ListItems)
		v1.GET("/items/:asin", itemHandler.GetItem)
		v1.GET("/items/:asin/snapshots", itemHandler.GetItemSnapshots)
		v1.GET("/items/:asin/features", itemHandler.GetItemFeatures)

		// Tasks
		v1.GET("/tasks", taskHandler.ListTasks)
		v1.GET("/tasks/:id", taskHandler.GetTask)
		v1.POST("/tasks/:id/cancel", taskHandler.CancelTask)

		// Data quality
		v1.GET("/dq/issues", dqHandler.ListIssues)
		v1.POST("/dq/issues/:id/status", dqHandler.SetIssueStatus)
	}

	return r
}
