package syscfg

// APIPrefix is the path prefix of every REST endpoint.
const APIPrefix = "/api/v1"

// SessionHeader carries the session id on authenticated requests.
const SessionHeader = "X-Session-ID"

// Response is the envelope every endpoint answers with. Successful replies set
// Status to "success" and fill Data; failures set Status to "error" and carry
// the service Code and a Message.
type Response[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data,omitempty"`
	Count   int    `json:"count,omitempty"`
	Code    Status `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ipAddress"`
	State     string `json:"state"`
	Version   string `json:"version"`
}

// StatusDescriptionResponse is returned by GET /status/:code.
type StatusDescriptionResponse struct {
	Code        Status `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SessionResponse is returned by POST /sessions.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresIn int    `json:"expiresIn"`
}

// SystemPatchRequest is the body of PATCH /system.
type SystemPatchRequest struct {
	Properties map[SystemProperty]string `json:"properties" binding:"required"`
}

// ResourcePatchRequest is the body of PATCH /hardware/:id.
type ResourcePatchRequest struct {
	Properties map[Property]string `json:"properties" binding:"required"`
}

// RenameRequest is the body of POST /hardware/:id/rename.
type RenameRequest struct {
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite"`
}

// OperationResponse acknowledges restart, format and image apply requests.
type OperationResponse struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
}
