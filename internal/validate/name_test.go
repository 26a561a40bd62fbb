package validate

import (
	"strings"
	"testing"
)

// TestHostname tests target hostname validation
func TestHostname(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"simple", "crio", false},
		{"with digits and hyphens", "NI-cRIO-9045-01E3C2A1", false},
		{"single character", "a", false},
		{"empty", "", true},
		{"dotted", "crio.lab", true},
		{"leading hyphen", "-crio", true},
		{"trailing hyphen", "crio-", true},
		{"underscore", "crio_lab", true},
		{"space", "crio lab", true},
		{"too long", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Hostname(tt.input)
			if tt.expectError && err == nil {
				t.Errorf("Expected error for input '%s', but got none", tt.input)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error for input '%s', but got: %v", tt.input, err)
			}
		})
	}
}

// TestAlias tests resource alias validation
func TestAlias(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"plain", "Mod1", false},
		{"with spaces inside", "Thermocouple Bank A", false},
		{"max length", strings.Repeat("x", MaxAliasLength), false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"leading space", " Mod1", true},
		{"too long", strings.Repeat("x", MaxAliasLength+1), true},
		{"control character", "Mod\t1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Alias(tt.input)
			if tt.expectError != (err != nil) {
				t.Errorf("Alias(%q) error = %v, expectError %v", tt.input, err, tt.expectError)
			}
		})
	}
}
