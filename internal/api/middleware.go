package api

import (
	"time"

	"github.com/concave-dev/rtconfig/internal/api/handlers"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/gin-gonic/gin"
)

// loggingMiddleware provides request logging
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		// Health polls during restarts would drown everything else
		if param.Path == syscfg.APIPrefix+"/health" {
			logging.Debug("%s %s %d %s", param.Method, param.Path, param.StatusCode, param.Latency)
			return ""
		}
		logging.Info("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
		return ""
	})
}

// corsMiddleware provides CORS headers
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, "+syscfg.SessionHeader)
		c.Header("Access-Control-Max-Age", "300")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// sessionMiddleware rejects requests without a live session.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(syscfg.SessionHeader)
		if id == "" {
			handlers.RespondStatus(c, syscfg.StatusSessionInvalid, "authorize", "missing %s header", syscfg.SessionHeader)
			return
		}
		if !s.sessions.Touch(id) {
			handlers.RespondStatus(c, syscfg.StatusSessionInvalid, "authorize", "session has expired or was closed")
			return
		}
		c.Next()
	}
}
