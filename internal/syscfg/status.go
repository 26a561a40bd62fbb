package syscfg

import (
	"errors"
	"fmt"
	"net/http"
)

// Status is a configuration service result code. Zero is success; every other
// value is defined by the service. Codes are kept below 256 so the CLI can use
// them directly as its process exit status.
type Status int

const (
	StatusOK                Status = 0
	StatusNotImplemented    Status = 10
	StatusInvalidArg        Status = 11
	StatusTimeout           Status = 12
	StatusSystemNotFound    Status = 13
	StatusAccessDenied      Status = 14
	StatusResourceNotFound  Status = 15
	StatusReadOnly          Status = 16
	StatusImageIncompatible Status = 17
	StatusFileNotFound      Status = 18
	StatusFirmwareInvalid   Status = 19
	StatusNameCollision     Status = 20
	StatusBusy              Status = 21
	StatusSessionInvalid    Status = 22
	StatusSelfTestFailed    Status = 23
	StatusServiceError      Status = 24
)

var statusNames = map[Status]string{
	StatusOK:                "OK",
	StatusNotImplemented:    "NotImplemented",
	StatusInvalidArg:        "InvalidArg",
	StatusTimeout:           "Timeout",
	StatusSystemNotFound:    "SystemNotFound",
	StatusAccessDenied:      "AccessDenied",
	StatusResourceNotFound:  "ResourceNotFound",
	StatusReadOnly:          "ReadOnly",
	StatusImageIncompatible: "ImageIncompatible",
	StatusFileNotFound:      "FileNotFound",
	StatusFirmwareInvalid:   "FirmwareInvalid",
	StatusNameCollision:     "NameCollision",
	StatusBusy:              "Busy",
	StatusSessionInvalid:    "SessionInvalid",
	StatusSelfTestFailed:    "SelfTestFailed",
	StatusServiceError:      "ServiceError",
}

// statusDescriptions is the text the service hands out for each code. The CLI
// never reads this table directly; it asks a target through
// Service.StatusDescription.
var statusDescriptions = map[Status]string{
	StatusOK:                "The operation completed successfully.",
	StatusNotImplemented:    "The requested operation is not supported by this resource.",
	StatusInvalidArg:        "One or more arguments or property values are invalid.",
	StatusTimeout:           "The operation did not complete within the allotted time.",
	StatusSystemNotFound:    "The specified system could not be found or is not reachable on the network.",
	StatusAccessDenied:      "Access denied. The supplied credentials were rejected by the target.",
	StatusResourceNotFound:  "No hardware resource matched the requested criteria.",
	StatusReadOnly:          "The property is read-only and cannot be changed.",
	StatusImageIncompatible: "The system image is invalid or was captured from an incompatible target.",
	StatusFileNotFound:      "The specified file or folder does not exist.",
	StatusFirmwareInvalid:   "The firmware file is invalid or the firmware update failed.",
	StatusNameCollision:     "The requested name is already in use by another resource.",
	StatusBusy:              "The target is busy with another operation. Try again after it completes.",
	StatusSessionInvalid:    "The session is invalid or has expired.",
	StatusSelfTestFailed:    "The resource failed its self-test.",
	StatusServiceError:      "The configuration service reported an internal error.",
}

// String returns the symbolic name of the code.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Error lets a bare Status be used as an error and as an errors.Is target.
func (s Status) Error() string {
	return fmt.Sprintf("status %d (%s)", int(s), s.String())
}

// Description returns the service's text for the code. Unknown codes get a
// generic description that still includes the number.
func (s Status) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return fmt.Sprintf("Unknown status code %d.", int(s))
}

// HTTPStatus maps a code onto the HTTP status the REST API answers with.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusInvalidArg:
		return http.StatusBadRequest
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusAccessDenied, StatusSessionInvalid:
		return http.StatusUnauthorized
	case StatusSystemNotFound, StatusResourceNotFound, StatusFileNotFound:
		return http.StatusNotFound
	case StatusReadOnly, StatusNameCollision:
		return http.StatusConflict
	case StatusImageIncompatible, StatusFirmwareInvalid:
		return http.StatusUnprocessableEntity
	case StatusBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failed service call. Op names the call that failed and Message
// carries the service's detail, if any.
type Error struct {
	Status  Status
	Op      string
	Message string
}

// Errorf builds an *Error with a formatted message.
func Errorf(status Status, op, format string, args ...any) *Error {
	return &Error{Status: status, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: status %d (%s)", e.Op, int(e.Status), e.Status.String())
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is matches a bare Status target, so errors.Is(err, StatusTimeout) works on
// wrapped service errors.
func (e *Error) Is(target error) bool {
	s, ok := target.(Status)
	return ok && s == e.Status
}

// StatusOf extracts the service status carried by err. The boolean is false
// for nil and for errors that did not come from the service.
func StatusOf(err error) (Status, bool) {
	if err == nil {
		return StatusOK, false
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Status, true
	}
	var status Status
	if errors.As(err, &status) {
		return status, true
	}
	return StatusOK, false
}
