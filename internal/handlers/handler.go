package handlers

import (
	"greendrop/internal/events"
	"greendrop/internal/logger"
	"greendrop/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Stream is the source of pushed events for /ws.
type Stream interface {
	Subscribe() chan events.Event
	Unsubscribe(ch chan events.Event)
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	stream   Stream
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, stream Stream, log *logger.Logger) *Handler {
	return &Handler{services: services, stream: stream, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Credential cache
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Event stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/token", h.setToken)
		auth.DELETE("/token", h.logout)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.credentialMiddleware)
	{
		h.registerDeviceRoutes(api)
		h.registerIrrigationRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	device := api.Group("/device")
	{
		device.GET("", h.getDevice)
		device.POST("/scan", h.scanDevice)
		// Body example: {"id":"AA:BB:CC:DD:EE:FF"}
		device.POST("/connect", h.connectDevice)
		device.POST("/disconnect", h.disconnectDevice)
		device.GET("/telemetry", h.getTelemetry)
		device.GET("/history", h.getHistory)
	}
}

func (h *Handler) registerIrrigationRoutes(api *gin.RouterGroup) {
	irrigation := api.Group("/irrigation")
	{
		// Body example: {"duration_min":12} or {"plant":"Pasto","auto_by_plant":true}
		irrigation.POST("/start", h.startIrrigation)
		irrigation.POST("/stop", h.stopIrrigation)
		irrigation.POST("/ack", h.ackIrrigation)
		irrigation.GET("/state", h.getState)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
