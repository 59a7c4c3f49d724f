// Package privacy masks operator identifiers before they reach the logs.
package privacy

import (
	"net"
	"net/netip"
	"strings"
)

// AnonymizeAddr truncates a client address to its network. IPv4 keeps the
// /24 and IPv6 the /48. A port, if present, is dropped.
//
// Returns "unknown" for empty input and "invalid" when no address parses.
func AnonymizeAddr(addr string) string {
	if addr == "" || addr == "unknown" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return "invalid"
	}
	ip = ip.Unmap()

	bits := 48
	if ip.Is4() {
		bits = 24
	}
	prefix, err := ip.WithZone("").Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// MaskEmail keeps the first character of the local part and the domain:
// "operator@trash4cash.id" becomes "o***@trash4cash.id".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
