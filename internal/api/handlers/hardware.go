package handlers

import (
	"io"
	"net/http"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

// MaxFirmwareSize bounds firmware uploads.
const MaxFirmwareSize = 256 << 20

// HandleListHardware returns the resources matching the filter in the query
// string, for example ?mode=all&slotNumber=2.
func HandleListHardware(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := syscfg.DecodeFilter(c.Request.URL.Query())
		if err != nil {
			RespondError(c, err)
			return
		}

		resources, err := device.Hardware(filter)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondList(c, resources)
	}
}

// HandlePatchResource applies staged resource properties.
func HandlePatchResource(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syscfg.ResourcePatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondStatus(c, syscfg.StatusInvalidArg, "save resource changes", "invalid request body: %v", err)
			return
		}

		result, err := device.SetResourceProperties(c.Param("id"), req.Properties)
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, result)
	}
}

// HandleSelfTest runs a resource's self-test.
func HandleSelfTest(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := device.SelfTest(c.Request.Context(), id); err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, gin.H{"id": id, "result": "pass"})
	}
}

// HandleRename sets a resource's alias.
func HandleRename(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syscfg.RenameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondStatus(c, syscfg.StatusInvalidArg, "rename", "invalid request body: %v", err)
			return
		}

		result, err := device.Rename(c.Param("id"), req.Name, req.Overwrite)
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, result)
	}
}

// HandleStartFirmware accepts a firmware upload and starts flashing it.
func HandleStartFirmware(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "upgrade firmware"

		header, err := c.FormFile("firmware")
		if err != nil {
			RespondStatus(c, syscfg.StatusInvalidArg, op, "missing firmware upload: %v", err)
			return
		}
		if header.Size > MaxFirmwareSize {
			RespondStatus(c, syscfg.StatusFirmwareInvalid, op, "firmware file is too large")
			return
		}

		f, err := header.Open()
		if err != nil {
			RespondStatus(c, syscfg.StatusServiceError, op, "open upload: %v", err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			RespondStatus(c, syscfg.StatusServiceError, op, "read upload: %v", err)
			return
		}

		progress, err := device.StartFirmwareUpdate(c.Param("id"), data)
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusAccepted, progress)
	}
}

// HandleFirmwareStatus reports the progress of the last firmware update.
func HandleFirmwareStatus(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := device.FirmwareStatus(c.Param("id"))
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, progress)
	}
}
