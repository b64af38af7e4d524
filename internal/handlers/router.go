package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/roster-import-service/internal/services"
	"github.com/SAP-F-2025/roster-import-service/internal/utils"
)

type HandlerManager struct {
	importHandler    *ImportHandler
	benchmarkHandler *BenchmarkHandler
	auth             Authenticator
	gatherer         prometheus.Gatherer
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	auth Authenticator,
	gatherer prometheus.Gatherer,
	logger utils.Logger,
) *HandlerManager {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HandlerManager{
		importHandler:    NewImportHandler(serviceManager.Import(), logger),
		benchmarkHandler: NewBenchmarkHandler(serviceManager.Benchmark(), logger),
		auth:             auth,
		gatherer:         gatherer,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "roster-import-service",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := router.Group("/api/v1", AuthMiddleware(hm.auth))
	{
		imports := v1.Group("/imports")
		{
			imports.POST("/preview", hm.importHandler.Preview)
			imports.GET("/mapping-history", hm.importHandler.ListMappingHistory)

			sessions := imports.Group("/sessions")
			{
				sessions.POST("", hm.importHandler.StartSession)
				sessions.POST("/upload", hm.importHandler.UploadSession)
				sessions.POST("/paste", hm.importHandler.StartSessionFromPaste)
				sessions.GET("", hm.importHandler.ListSessions)
				sessions.GET("/active", hm.importHandler.GetActiveSession)
				sessions.GET("/:id", hm.importHandler.GetSession)
				sessions.PUT("/:id/draft", hm.importHandler.SaveDraft)
				sessions.POST("/:id/cancel", hm.importHandler.CancelSession)

				// Pipeline steps
				sessions.POST("/:id/remap", hm.importHandler.RemapColumns)
				sessions.GET("/:id/validation", hm.importHandler.ValidateRows)
				sessions.GET("/:id/quality", hm.importHandler.ScoreQuality)
				sessions.POST("/:id/simulate", hm.importHandler.Simulate)
				sessions.GET("/:id/simulation/export", hm.importHandler.ExportSimulation)

				// Commit and undo
				sessions.POST("/:id/commit", hm.importHandler.Commit)
				sessions.GET("/:id/undo-eligibility", hm.importHandler.CheckUndoEligibility)
				sessions.POST("/:id/undo", hm.importHandler.Undo)
			}
		}

		benchmarks := v1.Group("/benchmarks")
		{
			benchmarks.POST("/templates", hm.benchmarkHandler.CreateTemplate)
			benchmarks.GET("/templates", hm.benchmarkHandler.ListTemplates)
		}
	}
}

// NewRouter builds the gin engine with the request logging middleware.
func NewRouter(hm *HandlerManager, logger utils.Logger) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes
	router.Use(gin.Recovery(), utils.ContextLogger(logger), utils.LoggerMiddleware(logger))
	hm.SetupRoutes(router)
	return router
}
