package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/target"
	"github.com/gin-gonic/gin"
)

type staticDiscovery []syscfg.DiscoveredSystem

func (d staticDiscovery) Systems() []syscfg.DiscoveredSystem { return d }

func newTestDevice(t *testing.T, mutate func(*target.Profile)) *target.Device {
	t.Helper()
	profile := target.DefaultProfile()
	if mutate != nil {
		mutate(&profile)
	}
	device, err := target.New(profile, target.Options{
		RestartDelay:     200 * time.Millisecond,
		FormatDuration:   50 * time.Millisecond,
		FirmwareDuration: 50 * time.Millisecond,
		HostCheck:        func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("target.New() error = %v", err)
	}
	t.Cleanup(device.Close)
	return device
}

func newTestServer(t *testing.T, device *target.Device) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	cfg.Device = device
	cfg.Discovery = staticDiscovery{{Hostname: "NI-cRIO-9045-01F2A3B4", IPAddress: "127.0.0.1", APIAddress: "127.0.0.1:8640"}}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server
}

// do sends a request to the router and returns the recorder.
func do(server *Server, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, syscfg.APIPrefix+path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(syscfg.SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func openSession(t *testing.T, server *Server) string {
	t.Helper()
	w := do(server, http.MethodPost, "/sessions", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("open session status = %d, body %s", w.Code, w.Body.String())
	}
	var resp syscfg.Response[syscfg.SessionResponse]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp.Data.SessionID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) syscfg.Response[T] {
	t.Helper()
	var resp syscfg.Response[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return resp
}
