// Package utils contains helpers for the rtconfigd daemon: Serf port
// discovery and the startup banner.
package utils

import (
	"fmt"
	"net"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/netutil"
)

// MaxPortAttempts bounds how far FindAvailablePort scans past its start port.
const MaxPortAttempts = 100

// FindAvailablePort finds a port, starting at startPort, that is free for
// both TCP and UDP on address. Serf gossips over UDP and syncs state over
// TCP on the same port.
func FindAvailablePort(address string, startPort int) (int, error) {
	for port := startPort; port < startPort+MaxPortAttempts && port <= 65535; port++ {
		free, err := CheckSerfPort(address, port)
		if err != nil {
			return 0, err
		}
		if free {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available port found in range %d-%d on %s",
		startPort, startPort+MaxPortAttempts-1, address)
}

// CheckSerfPort reports whether port is free for both TCP and UDP. Errors
// other than "address in use" are returned.
func CheckSerfPort(address string, port int) (bool, error) {
	addr := net.JoinHostPort(address, fmt.Sprint(port))

	// Force IPv4 for consistent behavior with the Serf bind
	tcpConn, err := net.Listen("tcp4", addr)
	if err != nil {
		if netutil.IsAddressInUseError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to bind TCP to %s: %w", addr, err)
	}
	tcpConn.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return false, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		if netutil.IsAddressInUseError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to bind UDP to %s: %w", addr, err)
	}
	udpConn.Close()
	return true, nil
}

// PreBindAPIListener reserves the API listener before any service starts.
// An explicit port is bound as-is; the default port falls back to the next
// free one.
func PreBindAPIListener(explicitlySet bool, addr string, port int) (net.Listener, int, error) {
	if explicitlySet {
		logging.Info("Pre-binding API listener to explicit port %d", port)
		listener, err := netutil.BindTCP(addr, port)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to pre-bind API listener to %s:%d: %w", addr, port, err)
		}
		return listener, port, nil
	}

	listener, actualPort, err := netutil.BindTCPWithFallback(addr, port)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pre-bind API listener: %w", err)
	}
	if actualPort != port {
		logging.Warn("Default API port %d was busy, pre-bound to port %d", port, actualPort)
	} else {
		logging.Info("Pre-bound API listener to port %d", actualPort)
	}
	return listener, actualPort, nil
}
