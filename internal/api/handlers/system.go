package handlers

import (
	"net/http"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

// HandleGetSystem returns the system properties.
func HandleGetSystem(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		Respond(c, http.StatusOK, device.SystemInfo())
	}
}

// HandlePatchSystem applies staged system properties. Either every property
// is applied or none is.
func HandlePatchSystem(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syscfg.SystemPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondStatus(c, syscfg.StatusInvalidArg, "save changes", "invalid request body: %v", err)
			return
		}

		result, err := device.ApplySystemChanges(req.Properties)
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, result)
	}
}

// HandleRestart reboots the target. The reply is sent before the target goes
// down; clients then poll /health.
func HandleRestart(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := device.Restart(); err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusAccepted, syscfg.OperationResponse{
			Operation: "restart",
			State:     string(target.StateRestarting),
		})
	}
}

// HandleFormat erases the target's configuration.
func HandleFormat(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := device.Format(); err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusAccepted, syscfg.OperationResponse{
			Operation: "format",
			State:     string(target.StateFormatting),
		})
	}
}
