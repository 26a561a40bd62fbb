// Package utils provides utility functions for the rtconfig CLI.
// This file contains logging setup and Resty logger integration utilities.
package utils

import (
	"os"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/config"
	"github.com/concave-dev/rtconfig/internal/logging"
)

// RestyLogger implements resty.Logger and routes logs through structured logging
type RestyLogger struct{}

// Errorf routes error messages through structured logging.
func (RestyLogger) Errorf(format string, v ...interface{}) {
	logging.Error(format, v...)
}

// Warnf routes warning messages through structured logging.
func (RestyLogger) Warnf(format string, v ...interface{}) {
	logging.Warn(format, v...)
}

// Debugf routes debug messages through structured logging.
func (RestyLogger) Debugf(format string, v ...interface{}) {
	logging.Debug(format, v...)
}

// SetupLogging configures CLI logging. DEBUG=true shows everything;
// otherwise only --log-level and above is shown, and below ERROR only when
// the user asked for it. Logs go to stderr so command output stays parseable.
func SetupLogging() {
	logging.SetOutput(os.Stderr)

	if os.Getenv("DEBUG") == "true" {
		logging.SetLevel("DEBUG")
		return
	}

	if config.Global.LogLevel == config.DefaultLogLevel {
		logging.SuppressOutput()
		return
	}
	logging.SetLevel(config.Global.LogLevel)
}
