package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moodbite/backend/config"
	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/observability"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger, metrics *observability.Collector) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware(metrics))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check and metrics endpoints
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/products/:barcode", handler.LookupProduct)
		v1.GET("/catalog/:barcode", handler.GetCatalogProduct)

		users := v1.Group("/users/:userId")
		{
			registerCollection(users.Group("/scans"), handler, domain.CollectionScanned)
			registerCollection(users.Group("/diet"), handler, domain.CollectionDiet)

			moods := users.Group("/moods")
			{
				moods.PUT("/:date", handler.SetMood)
				moods.GET("", handler.ListMoods)
			}

			users.GET("/dashboard", handler.GetDashboard)
			users.GET("/feed", handler.DashboardFeed)
		}
	}

	return router
}

func registerCollection(group *gin.RouterGroup, handler *Handler, collection domain.Collection) {
	group.POST("", handler.AddRecord(collection))
	group.GET("", handler.ListRecords(collection))
	group.DELETE("/:barcode", handler.DeleteRecord(collection))
}
