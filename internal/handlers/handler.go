package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"printerbot/internal/logger"
	"printerbot/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be
// nil, in which case /metrics is not served.
func NewHandler(services *service.Service, log *logger.Logger, metrics http.Handler) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// snapshot stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.requireOperator)
	{
		h.registerPrinterRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerStorageRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerPrinterRoutes(api *gin.RouterGroup) {
	p := api.Group("/printer")
	{
		p.GET("/status", h.getStatus)
		p.GET("/sensors", h.getSensors)
		p.GET("/macros", h.getMacros)
		p.GET("/files", h.listFiles)
		p.GET("/files/info", h.getFileInfo)
		p.GET("/updates", h.getUpdates)
		p.GET("/versions", h.getVersions)
		// Body example: {"filename":"cube.gcode"}
		p.POST("/print", h.startPrint)
		p.POST("/upload", h.uploadFile)
		// Body example: {"script":"G28"}
		p.POST("/gcode", h.runGcode)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	d := api.Group("/devices")
	{
		d.GET("/", h.listDevices)
		// Body example: {"on":true}
		d.POST("/:name/switch", h.switchDevice)
		d.POST("/:name/toggle", h.toggleDevice)
	}
}

func (h *Handler) registerStorageRoutes(api *gin.RouterGroup) {
	s := api.Group("/storage")
	{
		s.GET("/:key", h.getItem)
		s.PUT("/:key", h.putItem)
		s.DELETE("/:key", h.deleteItem)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
	api.GET("/jobs", h.getJobs)
}
