// Package utils provides small helpers shared by the rtconfig components.
//
// Identifiers use crypto/rand so that simulated targets started at the same
// moment never collide.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateID creates a 12-character lowercase hex identifier. Serf uses it
// to tell apart restarts of a node with the same name.
func GenerateID() (string, error) {
	return randomHex(6)
}

// GenerateSerial creates an 8-character uppercase hex serial number in the
// format controllers report, e.g. "01E3C2A1".
func GenerateSerial() (string, error) {
	s, err := randomHex(4)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

// TruncateID shortens long identifiers such as session ids for logs. Identifiers of eight characters or fewer are returned unchanged.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
