package util

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	portIDPattern = regexp.MustCompile(`^\d{1,2}/\d{1,3}(/\d{1,3})?$`)
)

// IsValidIPv4 checks if a string is a valid dotted-quad IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil && strings.Count(ipStr, ".") == 3
}

// IPv4Octets returns the four octets of a literal IPv4 address.
// Hostnames, IPv6 addresses and malformed input return ok=false.
func IPv4Octets(host string) (octets [4]int, ok bool) {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return octets, false
	}
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return octets, false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || p[0] == '+' || p[0] == '-' {
			return octets, false
		}
		octets[i] = n
	}
	return octets, true
}

// IsValidHostname reports whether s is an RFC 1123 hostname
func IsValidHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	s = strings.TrimSuffix(s, ".")
	for _, label := range strings.Split(s, ".") {
		if !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}

// IsValidHost accepts an IPv4 address or a hostname
func IsValidHost(s string) bool {
	return IsValidIPv4(s) || IsValidHostname(s)
}

// IsValidPortID checks an OmniSwitch port reference such as 1/1/24 or 2/47
func IsValidPortID(s string) bool {
	return portIDPattern.MatchString(s)
}

// NormalizeMAC converts a MAC address in any common notation
// (aa-bb-cc-dd-ee-ff, AABB.CCDD.EEFF, aa:bb:...) to lower-case colon form.
func NormalizeMAC(s string) (string, bool) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return hw.String(), true
}
