package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	saved := Global
	t.Cleanup(func() { Global = saved })
	Global = Config{
		SerfAddr:           DefaultSerf,
		APIAddr:            DefaultAPI,
		DataDir:            t.TempDir(),
		LogLevel:           DefaultLogLevel,
		RestartDelay:       time.Second,
		FormatDuration:     time.Second,
		FirmwareDuration:   time.Second,
		SessionIdleTimeout: time.Minute,
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	resetGlobal(t)

	if err := ValidateConfig(); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}
	if Global.SerfAddr != "0.0.0.0" || Global.SerfPort != 4640 {
		t.Errorf("serf = %s:%d, want 0.0.0.0:4640", Global.SerfAddr, Global.SerfPort)
	}
	if Global.APIPort != 8640 {
		t.Errorf("APIPort = %d, want 8640", Global.APIPort)
	}
}

func TestValidateConfig_ExplicitAPI(t *testing.T) {
	resetGlobal(t)
	Global.APIAddr = "127.0.0.1:9000"
	Global.SetExplicitlySet(APIAddrField, true)

	if err := ValidateConfig(); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}
	if Global.APIAddr != "127.0.0.1" || Global.APIPort != 9000 {
		t.Errorf("api = %s:%d, want 127.0.0.1:9000", Global.APIAddr, Global.APIPort)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func()
	}{
		{"bad serf address", func() { Global.SerfAddr = "not-an-address" }},
		{"hostname serf address", func() { Global.SerfAddr = "localhost:4640" }},
		{"bad log level", func() { Global.LogLevel = "LOUD" }},
		{"bad explicit api", func() {
			Global.APIAddr = "0.0.0.0:99999"
			Global.SetExplicitlySet(APIAddrField, true)
		}},
		{"shared port", func() { Global.SerfAddr = "0.0.0.0:8640" }},
		{"bad join address", func() { Global.JoinAddrs = []string{"nowhere"} }},
		{"empty data dir", func() { Global.DataDir = "" }},
		{"missing profile", func() {
			Global.Profile = filepath.Join(os.TempDir(), "does-not-exist", "profile.yaml")
			Global.SetExplicitlySet(ProfileField, true)
		}},
		{"negative restart delay", func() { Global.RestartDelay = -time.Second }},
		{"zero session timeout", func() { Global.SessionIdleTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobal(t)
			tt.modify()
			if err := ValidateConfig(); err == nil {
				t.Error("ValidateConfig() expected error, got nil")
			}
		})
	}
}

func TestInitializeConfig_DebugEnv(t *testing.T) {
	resetGlobal(t)
	t.Setenv("DEBUG", "true")

	InitializeConfig()
	if Global.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %s, want DEBUG", Global.LogLevel)
	}
}
