package api

import (
	"github.com/concave-dev/rtconfig/internal/api/handlers"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/version"
	"github.com/gin-gonic/gin"
)

// Configures all API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET(metricsPath, s.metrics.handler())

	v1 := router.Group(syscfg.APIPrefix)

	// Unauthenticated endpoints
	v1.GET("/health", handlers.HandleHealth(s.device, version.RtconfigdVersion))
	v1.GET("/systems", handlers.HandleSystems(s.discovery))
	v1.GET("/status/:code", handlers.HandleStatusDescription())
	v1.POST("/sessions", handlers.HandleOpenSession(s.device, s.sessions))
	v1.DELETE("/sessions/:id", handlers.HandleCloseSession(s.sessions))

	authed := v1.Group("", s.sessionMiddleware())

	system := authed.Group("/system")
	{
		system.GET("", handlers.HandleGetSystem(s.device))
		system.PATCH("", handlers.HandlePatchSystem(s.device))
		system.POST("/restart", handlers.HandleRestart(s.device))
		system.POST("/format", handlers.HandleFormat(s.device))
		system.GET("/image", handlers.HandleGetImage(s.device))
		system.PUT("/image", handlers.HandlePutImage(s.device))
	}

	hardware := authed.Group("/hardware")
	{
		hardware.GET("", handlers.HandleListHardware(s.device))
		hardware.PATCH("/:id", handlers.HandlePatchResource(s.device))
		hardware.POST("/:id/selftest", handlers.HandleSelfTest(s.device))
		hardware.POST("/:id/rename", handlers.HandleRename(s.device))
		hardware.POST("/:id/firmware", handlers.HandleStartFirmware(s.device))
		hardware.GET("/:id/firmware", handlers.HandleFirmwareStatus(s.device))
	}
}
