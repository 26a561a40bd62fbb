// Package handlers provides HTTP request handlers for the rtconfigd API.
//
// Every reply uses the syscfg.Response envelope. Successful calls answer
// {"status":"success","data":...}; failures answer
// {"status":"error","code":N,"message":"..."} with an HTTP status derived
// from the service status code, so clients can decode failures without
// knowing which endpoint they called.
package handlers

import (
	"errors"
	"net/http"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/gin-gonic/gin"
)

// Respond writes a success envelope.
func Respond[T any](c *gin.Context, code int, data T) {
	c.JSON(code, syscfg.Response[T]{Status: "success", Data: data})
}

// RespondList writes a success envelope with a count.
func RespondList[T any](c *gin.Context, items []T) {
	c.JSON(http.StatusOK, syscfg.Response[[]T]{Status: "success", Data: items, Count: len(items)})
}

// RespondError writes an error envelope and aborts the chain. Errors without
// a status are reported as ServiceError.
func RespondError(c *gin.Context, err error) {
	status, ok := syscfg.StatusOf(err)
	if !ok {
		status = syscfg.StatusServiceError
		logging.Error("Unclassified error on %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	message := err.Error()
	var svcErr *syscfg.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
	}

	c.AbortWithStatusJSON(status.HTTPStatus(), syscfg.Response[any]{
		Status:  "error",
		Code:    status,
		Message: message,
	})
}

// RespondStatus writes an error envelope for a bare status.
func RespondStatus(c *gin.Context, status syscfg.Status, op, format string, args ...any) {
	RespondError(c, syscfg.Errorf(status, op, format, args...))
}
