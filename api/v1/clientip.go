package v1

import (
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var proxyHeaders = []string{"X-Real-IP", "CF-Connecting-IP", "True-Client-IP"}

// clientIP picks the first public address the request carries, or "" when the
// booth is talking to us over a private network.
func clientIP(c *fiber.Ctx) string {
	if ip := preferredIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}
	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if ip := preferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}
	return preferredIP([]string{c.IP()})
}

// preferredIP returns the first public IPv4 address, else the first public IPv6 one.
func preferredIP(values []string) string {
	var v6 string
	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || isLocal(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if v6 == "" {
			v6 = addr.String()
		}
	}
	return v6
}

// parseAddr accepts bare, bracketed, quoted, zoned and host:port forms.
func parseAddr(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(clean); err == nil {
		return ap.Addr().Unmap(), true
	}
	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	addr, err := netip.ParseAddr(clean)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.WithZone("").Unmap(), true
}

func isLocal(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}
