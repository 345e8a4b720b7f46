package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/api/handlers"
	"github.com/yourusername/mediaq-go/api/middleware"
	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

// Dependencies are the services the HTTP surface drives
type Dependencies struct {
	Queue       handlers.QueueService
	Resolver    domain.MetadataResolver
	Binaries    handlers.BinaryService
	Events      handlers.EventSource
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
}

// SetupRouter builds the HTTP router for the command surface
func SetupRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log, deps.MultiLogger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.Queue, deps.Binaries)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		mediaHandler := handlers.NewMediaHandler(deps.Resolver, log)
		v1.POST("/media/metadata", mediaHandler.FetchMetadata)

		downloadHandler := handlers.NewDownloadHandler(deps.Queue, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.GetQueue)
			downloads.POST("/clear-completed", downloadHandler.ClearCompleted)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("/max-concurrent", downloadHandler.GetMaxConcurrent)
			settings.PUT("/max-concurrent", downloadHandler.SetMaxConcurrent)
		}

		binaryHandler := handlers.NewBinaryHandler(deps.Binaries, log)
		binaries := v1.Group("/binaries")
		{
			binaries.GET("", binaryHandler.CheckBinaries)
			binaries.POST("/:tool/install", binaryHandler.Install)
			binaries.POST("/:tool/update", binaryHandler.Update)
		}

		eventsHandler := handlers.NewEventsHandler(deps.Events, log)
		v1.GET("/events", eventsHandler.HandleWebSocket)

		logHandler := handlers.NewLogHandler(deps.MultiLogger.LogsDir())
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
