package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/gin-gonic/gin"
)

// TestRespondError tests that errors are mapped onto the error envelope
func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		err         error
		wantHTTP    int
		wantCode    syscfg.Status
		wantMessage string
	}{
		{
			name:        "service error",
			err:         syscfg.Errorf(syscfg.StatusResourceNotFound, "rename", "no resource %q", "mod9"),
			wantHTTP:    http.StatusNotFound,
			wantCode:    syscfg.StatusResourceNotFound,
			wantMessage: `no resource "mod9"`,
		},
		{
			name:        "wrapped service error",
			err:         fmt.Errorf("apply: %w", syscfg.Errorf(syscfg.StatusBusy, "format", "target is restarting")),
			wantHTTP:    http.StatusServiceUnavailable,
			wantCode:    syscfg.StatusBusy,
			wantMessage: "target is restarting",
		},
		{
			name:        "unclassified error",
			err:         errors.New("disk on fire"),
			wantHTTP:    http.StatusInternalServerError,
			wantCode:    syscfg.StatusServiceError,
			wantMessage: "disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/x", func(c *gin.Context) { RespondError(c, tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tt.wantHTTP {
				t.Errorf("HTTP status = %d, want %d", w.Code, tt.wantHTTP)
			}
			var resp syscfg.Response[any]
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if resp.Status != "error" || resp.Code != tt.wantCode || resp.Message != tt.wantMessage {
				t.Errorf("envelope = %+v", resp)
			}
		})
	}
}

// TestRespondList tests that lists carry their count
func TestRespondList(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		RespondList(c, []syscfg.DiscoveredSystem{{Hostname: "a"}, {Hostname: "b"}})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var resp syscfg.Response[[]syscfg.DiscoveredSystem]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Status != "success" || resp.Count != 2 || len(resp.Data) != 2 {
		t.Errorf("envelope = %+v", resp)
	}
}
