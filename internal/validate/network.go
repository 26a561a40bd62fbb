// Package validate provides input validation for rtconfig and rtconfigd.
//
// Network addresses, hostnames, IP settings and resource aliases are checked
// here with the go-playground/validator built-in tags. The CLI uses these
// checks for its flags and target arguments; the target service uses them to
// reject bad property values before anything is applied.
package validate

import (
	"fmt"
	"net"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Global validator instance using built-in validations
var validate = validator.New()

// NetworkAddress is a validated "ip:port" pair used for bind addresses.
type NetworkAddress struct {
	Host string `validate:"required,ip"`
	Port int    `validate:"min=0,max=65535"`
}

// String returns the address in "host:port" form.
func (na NetworkAddress) String() string {
	return net.JoinHostPort(na.Host, strconv.Itoa(na.Port))
}

// ParseBindAddress parses and validates an "ip:port" string. The host must be
// a literal IP; listeners are never bound by hostname.
func ParseBindAddress(addr string) (*NetworkAddress, error) {
	if addr == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address format '%s': %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port '%s': %w", portStr, err)
	}

	netAddr := &NetworkAddress{Host: host, Port: port}
	if err := validate.Struct(netAddr); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return netAddr, nil
}

// TargetAddress splits a target reference into host and port. Targets may be
// a bare hostname or IP, in which case defaultPort is used, or "host:port".
func TargetAddress(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("target cannot be empty")
	}

	host, port := target, defaultPort
	if h, p, err := net.SplitHostPort(target); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port '%s' in target '%s'", p, target)
		}
		host, port = h, n
	}

	if err := ValidateField(port, "min=1,max=65535"); err != nil {
		return "", 0, fmt.Errorf("invalid port %d in target '%s'", port, target)
	}
	if ValidateField(host, "ip") != nil && ValidateField(host, "hostname_rfc1123") != nil {
		return "", 0, fmt.Errorf("target '%s' is neither a hostname nor an IP address", target)
	}

	return host, port, nil
}

// ValidateField validates a single value against validator tags.
//
// Example: ValidateField("192.168.1.1", "required,ip")
func ValidateField(value any, tag string) error {
	return validate.Var(value, tag)
}

// ValidateAddressList validates every "ip:port" in a gossip join list.
func ValidateAddressList(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("address list cannot be empty")
	}

	for i, addr := range addresses {
		if _, err := ParseBindAddress(addr); err != nil {
			return fmt.Errorf("invalid address at index %d: %w", i, err)
		}
	}

	return nil
}

// IPv4Address validates a static IPv4 address assigned to a target.
func IPv4Address(ip string) error {
	if err := ValidateField(ip, "required,ipv4"); err != nil {
		return fmt.Errorf("'%s' is not a valid IPv4 address", ip)
	}
	if parsed := net.ParseIP(ip); parsed.IsUnspecified() || parsed.IsMulticast() {
		return fmt.Errorf("'%s' cannot be assigned to a target", ip)
	}
	return nil
}

// SubnetMask validates a dotted IPv4 subnet mask such as 255.255.255.0.
// The mask's one bits must be contiguous.
func SubnetMask(mask string) error {
	if err := ValidateField(mask, "required,ipv4"); err != nil {
		return fmt.Errorf("'%s' is not a valid subnet mask", mask)
	}
	ip := net.ParseIP(mask).To4()
	if _, bits := net.IPMask(ip).Size(); bits == 0 {
		return fmt.Errorf("'%s' is not a contiguous subnet mask", mask)
	}
	return nil
}
