package handlers

import (
	"net/http"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

// HandleHealth reports the target's state without a session. Clients poll
// it after a restart or format; it answers 503 until the target is running.
func HandleHealth(device *target.Device, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := device.Health()
		response := syscfg.HealthResponse{
			Status:    "healthy",
			Hostname:  health.Hostname,
			IPAddress: health.IPAddress,
			State:     string(health.State),
			Version:   version,
		}

		if health.State != target.StateRunning {
			response.Status = "unavailable"
			c.JSON(http.StatusServiceUnavailable, syscfg.Response[syscfg.HealthResponse]{
				Status:  "error",
				Data:    response,
				Code:    syscfg.StatusBusy,
				Message: "target is " + string(health.State),
			})
			return
		}

		Respond(c, http.StatusOK, response)
	}
}
