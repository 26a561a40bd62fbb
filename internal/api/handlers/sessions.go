package handlers

import (
	"net/http"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/concave-dev/rtconfig/internal/utils"
	"github.com/gin-gonic/gin"
)

// SessionStore issues and revokes session ids.
type SessionStore interface {
	Create(user string) (id string, ttl time.Duration)
	Delete(id string) bool
}

// HandleOpenSession authenticates with HTTP basic auth and issues a session.
func HandleOpenSession(device *target.Device, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, _ := c.Request.BasicAuth()
		if err := device.Authenticate(user, password); err != nil {
			logging.Warn("Rejected session for user %q from %s: %v", user, c.ClientIP(), err)
			RespondError(c, err)
			return
		}

		id, ttl := sessions.Create(user)
		logging.Debug("Opened session %s for user %q", utils.TruncateID(id), user)
		Respond(c, http.StatusCreated, syscfg.SessionResponse{
			SessionID: id,
			ExpiresIn: int(ttl.Seconds()),
		})
	}
}

// HandleCloseSession revokes a session.
func HandleCloseSession(sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !sessions.Delete(id) {
			RespondStatus(c, syscfg.StatusSessionInvalid, "close session", "no session %q", id)
			return
		}
		logging.Debug("Closed session %s", utils.TruncateID(id))
		c.Status(http.StatusNoContent)
	}
}
