package hostutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"
)

// ValidateHost accepts a dotted-quad IPv4 address, an IPv6 literal or an
// RFC 1123 hostname.
func ValidateHost(raw string) error {
	switch {
	case looksLikeIPv4(raw):
		if !validateIPv4(raw) {
			return fmt.Errorf("bad IP: '%s'", raw)
		}
	case looksLikeIPv6(raw):
		if !validateIPv6(strings.Trim(raw, "[]")) {
			return fmt.Errorf("bad IPv6: '%s'", raw)
		}
	default:
		if !validateHostname(raw) {
			return fmt.Errorf("bad hostname: '%s'", raw)
		}
	}
	return nil
}

// SplitHostPort splits "host" or "host:port" (IPv6 in brackets when a port is
// given). A missing port yields defPort.
func SplitHostPort(raw string, defPort int) (host string, port int, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, fmt.Errorf("empty host")
	}

	// bare IPv6 literal, no port
	if strings.Count(raw, ":") > 1 && !strings.HasPrefix(raw, "[") {
		return raw, defPort, nil
	}
	if !strings.Contains(raw, ":") {
		return strings.Trim(raw, "[]"), defPort, nil
	}

	h, p, err := net.SplitHostPort(raw)
	if err != nil {
		return "", 0, fmt.Errorf("bad host: '%s': %w", raw, err)
	}
	if !isPort(p) {
		return "", 0, fmt.Errorf("bad port: '%s'", p)
	}
	port, _ = strconv.Atoi(p)
	return h, port, nil
}

// isPort checks if the string represents a valid port number (1–65535).
func isPort(s string) bool {
	// reject leading zeros
	if len(s) > 1 && s[0] == '0' {
		return false
	}

	port, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return port >= 1 && port <= 65535
}

// looksLikeIPv4 checks if raw looks like dotted quad
func looksLikeIPv4(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

func validateIPv4(raw string) bool {
	ip := net.ParseIP(raw)
	return ip != nil && ip.To4() != nil
}

// looksLikeIPv6 checks if raw looks like IPv6 literal
func looksLikeIPv6(raw string) bool {
	return strings.Contains(raw, ":") || (strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"))
}

func validateIPv6(raw string) bool {
	ip := net.ParseIP(raw)
	return ip != nil && ip.To16() != nil && ip.To4() == nil
}

// validateHostname checks DNS label rules (RFC 1123)
func validateHostname(raw string) bool {
	if len(raw) > 253 {
		return false
	}
	for _, label := range strings.Split(raw, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		for i, r := range label {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				return false
			}
			if (i == 0 || i == len(label)-1) && r == '-' {
				return false
			}
		}
	}
	return true
}
