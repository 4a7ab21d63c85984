package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
)

type HandlerManager struct {
	rotationHandler *RotationHandler
	locationHandler *LocationHandler
	importHandler   *ImportHandler

	authenticator Authenticator
	gatherer      prometheus.Gatherer
	ping          func(ctx context.Context) error
}

// RouterOptions carries what the routes need beyond the services.
type RouterOptions struct {
	MaxUploadBytes int64
	Gatherer       prometheus.Gatherer
	Ping           func(ctx context.Context) error
}

func NewHandlerManager(
	serviceManager *services.ServiceManager,
	authenticator Authenticator,
	logger utils.Logger,
	opts RouterOptions,
) *HandlerManager {
	return &HandlerManager{
		rotationHandler: NewRotationHandler(serviceManager.Rotation, logger),
		locationHandler: NewLocationHandler(serviceManager.Location, logger),
		importHandler:   NewImportHandler(serviceManager.Imports, serviceManager.Audit, opts.MaxUploadBytes, logger),
		authenticator:   authenticator,
		gatherer:        opts.Gatherer,
		ping:            opts.Ping,
	}
}

// NewRouter builds the engine with logging and recovery middleware and every route.
func NewRouter(hm *HandlerManager, logger utils.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.ContextLogger(logger), utils.LoggerMiddleware(logger))
	hm.SetupRoutes(router)
	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)
	if hm.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")

	// Public read-only routes
	v1.GET("/rotations/search", hm.rotationHandler.SearchRotations)
	v1.GET("/locations", hm.locationHandler.ListLocations)
	v1.GET("/brands", hm.locationHandler.ListBrands)

	authed := v1.Group("", AuthMiddleware(hm.authenticator))
	{
		rotations := authed.Group("/rotations")
		{
			rotations.GET("", RequireCapability(models.CapReadRotations), hm.rotationHandler.ListRotations)
			rotations.GET("/:id", RequireCapability(models.CapReadRotations), hm.rotationHandler.GetRotation)
			rotations.POST("", RequireCapability(models.CapPublishRotations), hm.rotationHandler.CreateRotation)
			rotations.DELETE("/:id", RequireCapability(models.CapDeleteRotations), hm.rotationHandler.DeleteRotation)
		}

		locations := authed.Group("/locations", RequireCapability(models.CapManageLocations))
		{
			locations.POST("", hm.locationHandler.CreateLocation)
			locations.DELETE("/:id", hm.locationHandler.DeleteLocation)
		}

		// The workflow checks the publish capability itself so that a
		// rejected request still renders the page state.
		imports := authed.Group("/imports")
		{
			imports.POST("", hm.importHandler.Begin)
			imports.DELETE("", hm.importHandler.Abandon)
			imports.GET("/template", hm.importHandler.Template)
			imports.GET("/runs", hm.importHandler.ListRuns)
			imports.GET("/runs/:id", hm.importHandler.GetRun)
			imports.GET("/:handle", hm.importHandler.View)
			imports.POST("/:handle/upload", hm.importHandler.Upload)
			imports.POST("/:handle/confirm", hm.importHandler.Confirm)
			imports.POST("/:handle/finish", hm.importHandler.Finish)
		}
	}
}

// HealthCheck reports whether the database answers
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "healthy",
		"service": "student-rotation-service",
	}

	if hm.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := hm.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}
