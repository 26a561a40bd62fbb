package handlers

import (
	"net/http"
	"strconv"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/gin-gonic/gin"
)

// Discovery lists the targets reachable from this one. The daemon backs it
// with the Serf manager.
type Discovery interface {
	Systems() []syscfg.DiscoveredSystem
}

// HandleSystems returns every discovered target.
func HandleSystems(discovery Discovery) gin.HandlerFunc {
	return func(c *gin.Context) {
		var systems []syscfg.DiscoveredSystem
		if discovery != nil {
			systems = discovery.Systems()
		}
		RespondList(c, systems)
	}
}

// HandleStatusDescription describes a status code.
func HandleStatusDescription() gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := strconv.Atoi(c.Param("code"))
		if err != nil || code < 0 || code > 255 {
			RespondStatus(c, syscfg.StatusInvalidArg, "status description", "invalid status code %q", c.Param("code"))
			return
		}

		status := syscfg.Status(code)
		Respond(c, http.StatusOK, syscfg.StatusDescriptionResponse{
			Code:        status,
			Name:        status.String(),
			Description: status.Description(),
		})
	}
}
