package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// maxBindAttempts limits how far BindTCPWithFallback walks from the
// preferred port.
const maxBindAttempts = 100

// AddressInUseError reports that a specific port is taken. Callers use
// errors.As to decide whether trying the next port makes sense.
type AddressInUseError struct {
	Port    int
	Address string
	Err     error
}

func (e *AddressInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use on %s", e.Port, e.Address)
}

func (e *AddressInUseError) Unwrap() error {
	return e.Err
}

// BindTCP binds a TCP listener and keeps it open, so the port cannot be taken
// between discovery and use.
func BindTCP(address string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		if IsAddressInUseError(err) {
			return nil, &AddressInUseError{Port: port, Address: address, Err: err}
		}
		return nil, fmt.Errorf("failed to bind TCP to %s: %w", addr, err)
	}
	return listener, nil
}

// BindTCPWithFallback binds the preferred port or the next free one above it.
// Several simulated targets can then run on one host without explicit ports.
// Port 0 lets the OS choose.
func BindTCPWithFallback(address string, preferredPort int) (net.Listener, int, error) {
	if preferredPort == 0 {
		listener, err := BindTCP(address, 0)
		if err != nil {
			return nil, 0, err
		}
		port, err := ListenerPort(listener)
		if err != nil {
			listener.Close()
			return nil, 0, err
		}
		return listener, port, nil
	}

	for port := preferredPort; port < preferredPort+maxBindAttempts && port <= 65535; port++ {
		listener, err := BindTCP(address, port)
		if err != nil {
			var inUse *AddressInUseError
			if errors.As(err, &inUse) {
				continue
			}
			return nil, 0, fmt.Errorf("failed to bind TCP starting from port %d: %w", preferredPort, err)
		}
		return listener, port, nil
	}

	return nil, 0, fmt.Errorf("no available TCP port found in range %d-%d on %s",
		preferredPort, preferredPort+maxBindAttempts-1, address)
}

// ListenerPort returns the port a TCP listener is bound to.
func ListenerPort(listener net.Listener) (int, error) {
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener is not a TCP listener: %T", listener.Addr())
	}
	return tcpAddr.Port, nil
}
