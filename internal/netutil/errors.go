// Package netutil provides network helpers shared by rtconfig and rtconfigd.
//
// Error classification is type-based rather than string-based so it behaves the
// same across operating systems. The CLI uses it to turn transport failures
// into service status codes; the target service uses it when binding ports.
package netutil

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// IsAddressInUseError checks if an error indicates "address already in use".
func IsAddressInUseError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.EADDRINUSE)
	}
	return false
}

// IsConnectionRefusedError checks if an error indicates "connection refused",
// which for a target usually means it is restarting or not running the
// configuration service.
func IsConnectionRefusedError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsUnreachableError reports failures where the target could not be contacted
// at all: refused or reset connections, unroutable hosts, and names that do
// not resolve.
func IsUnreachableError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionRefusedError(err) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsTimeoutError reports whether err is a deadline or network timeout.
func IsTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
