package handlers

import (
	"bytes"
	"net/http"

	"github.com/concave-dev/rtconfig/internal/archive"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// HandleGetImage streams the target's image as tar.gz.
func HandleGetImage(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		files, err := device.CaptureImage()
		if err != nil {
			RespondError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := archive.WriteFiles(&buf, files); err != nil {
			RespondStatus(c, syscfg.StatusServiceError, "get image", "pack image: %v", err)
			return
		}

		logging.Info("Captured image (%d files, %s)", len(files), humanize.Bytes(uint64(buf.Len())))
		c.Header("Content-Disposition", `attachment; filename="image.tar.gz"`)
		c.Data(http.StatusOK, "application/gzip", buf.Bytes())
	}
}

// HandlePutImage applies an uploaded image. The "network" query parameter
// chooses whether primary network settings are preserved (the default) or
// reset to the image's.
func HandlePutImage(device *target.Device) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "set image"

		network := c.DefaultQuery("network", "preserve")
		if network != "preserve" && network != "reset" {
			RespondStatus(c, syscfg.StatusInvalidArg, op, "network must be preserve or reset, got %q", network)
			return
		}

		header, err := c.FormFile("image")
		if err != nil {
			RespondStatus(c, syscfg.StatusInvalidArg, op, "missing image upload: %v", err)
			return
		}
		if header.Size > archive.MaxImageSize {
			RespondStatus(c, syscfg.StatusImageIncompatible, op, "image is %s, limit is %s",
				humanize.Bytes(uint64(header.Size)), humanize.Bytes(archive.MaxImageSize))
			return
		}

		f, err := header.Open()
		if err != nil {
			RespondStatus(c, syscfg.StatusServiceError, op, "open upload: %v", err)
			return
		}
		defer f.Close()

		files, err := archive.ReadFiles(f)
		if err != nil {
			RespondStatus(c, syscfg.StatusImageIncompatible, op, "%v", err)
			return
		}

		result, err := device.ApplyImage(files, network == "reset")
		if err != nil {
			RespondError(c, err)
			return
		}
		Respond(c, http.StatusOK, result)
	}
}
