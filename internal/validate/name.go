package validate

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxAliasLength bounds user aliases on hardware resources.
const MaxAliasLength = 64

// Hostname validates a target hostname against RFC 1123. Targets advertise
// their hostname on the network, so it must be a single DNS label.
func Hostname(name string) error {
	if name == "" {
		return fmt.Errorf("hostname cannot be empty")
	}

	if strings.Contains(name, ".") {
		return fmt.Errorf("hostname '%s' must be a single label without dots", name)
	}

	if err := ValidateField(name, "hostname_rfc1123,max=63"); err != nil || strings.HasSuffix(name, "-") {
		return fmt.Errorf("hostname '%s' must contain only letters, digits and hyphens, and cannot start or end with a hyphen", name)
	}

	return nil
}

// Alias validates a user alias for a hardware resource. Aliases are shown in
// tables, so control characters and surrounding whitespace are rejected.
func Alias(alias string) error {
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if alias != strings.TrimSpace(alias) {
		return fmt.Errorf("alias '%s' cannot start or end with whitespace", alias)
	}
	if len(alias) > MaxAliasLength {
		return fmt.Errorf("alias '%s' exceeds %d characters", alias, MaxAliasLength)
	}
	for _, r := range alias {
		if unicode.IsControl(r) {
			return fmt.Errorf("alias '%s' contains control characters", alias)
		}
	}
	return nil
}
