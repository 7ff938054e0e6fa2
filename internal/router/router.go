package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "dealdossier/docs"
	"dealdossier/internal/handler"
	"dealdossier/internal/middleware"
	"dealdossier/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Project  *handler.ProjectHandler
	File     *handler.FileHandler
	Upload   *handler.UploadHandler
	Analysis *handler.AnalysisHandler
	Stats    *handler.StatsHandler
	Health   *handler.HealthHandler
}

// Options controls optional router features.
type Options struct {
	AllowedOrigins []string
	Swagger        bool
	Logger         *zap.Logger
}

// Setup configures the Gin engine with all routes and middleware.
// @title Deal Dossier API
// @version 1.0
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func Setup(authSvc service.AuthService, h Handlers, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/file-types", handler.FileTypes)

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/signup", h.Auth.SignUp)
	auth.POST("/signin", h.Auth.SignIn)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/magic-link", h.Auth.RequestMagicLink)
	auth.POST("/exchange", h.Auth.ExchangeCode)

	// Protected routes - require a valid access token
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))

	protected.POST("/auth/signout", h.Auth.SignOut)
	protected.GET("/auth/session", h.Auth.Session)
	protected.GET("/stats", h.Stats.GetStats)

	projects := protected.Group("/projects")
	projects.POST("", h.Project.Create)
	projects.GET("", h.Project.List)
	projects.GET("/:id", h.Project.GetByID)
	projects.PUT("/:id", h.Project.Update)
	projects.DELETE("/:id", h.Project.Delete)
	projects.POST("/:id/files", h.Upload.Upload)
	projects.GET("/:id/files", h.File.ListByProject)
	projects.POST("/:id/batches", h.Upload.StartBatch)
	projects.GET("/:id/evidence", h.File.ProjectEvidence)
	projects.GET("/:id/evidence/export", h.Analysis.ExportEvidence)
	projects.GET("/:id/analysis", h.Analysis.Analyze)
	projects.GET("/:id/analysis/export", h.Analysis.ExportAnalysis)

	batches := protected.Group("/batches")
	batches.GET("/:id", h.Upload.GetBatch)
	batches.DELETE("/:id", h.Upload.CancelBatch)
	batches.GET("/:id/events", h.Upload.Events)

	files := protected.Group("/files")
	files.GET("/:id", h.File.GetByID)
	files.GET("/:id/status", h.File.Status)
	files.GET("/:id/download", h.File.Download)
	files.GET("/:id/evidence", h.File.Evidence)
	files.DELETE("/:id", h.File.Delete)

	return r
}
