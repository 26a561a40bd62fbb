// Package logging provides centralized log level validation.
//
// The CLI's --log-level flag and the target service's configuration both
// accept the same four level names. Keeping the canonical set here means a new
// level only has to be added once.
package logging

import "fmt"

// ValidLogLevels is the canonical set of supported log levels. Level strings
// are case-sensitive and uppercase.
var ValidLogLevels = map[string]bool{
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

// IsValidLogLevel reports whether level is supported.
func IsValidLogLevel(level string) bool {
	return ValidLogLevels[level]
}

// ValidateLogLevel returns an error for unsupported level strings so that every
// config package reports the same message.
func ValidateLogLevel(level string) error {
	if !IsValidLogLevel(level) {
		return fmt.Errorf("invalid log level: %s (valid: DEBUG, INFO, WARN, ERROR)", level)
	}
	return nil
}
