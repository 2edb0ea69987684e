// Package utils holds small helpers shared across handlers and middleware.
package utils

import (
	"net"
	"net/http"
	"strings"
)

// IsTrustedProxyIP checks whether ipStr is in the trusted proxy list.
// trustedProxies is a comma-separated string of IPs and CIDR ranges,
// e.g. "127.0.0.1,10.0.0.0/8".
func IsTrustedProxyIP(ipStr string, trustedProxies string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, proxy := range strings.Split(trustedProxies, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			if _, ipNet, err := net.ParseCIDR(proxy); err == nil && ipNet.Contains(ip) {
				return true
			}
			continue
		}

		if proxyIP := net.ParseIP(proxy); proxyIP != nil && ip.Equal(proxyIP) {
			return true
		}
	}

	return false
}

// ExtractIP strips the port from a "host:port" string. IPv6 addresses with
// and without brackets are handled; input without a port passes through.
func ExtractIP(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		return strings.Trim(addr, "[]")
	}

	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		if strings.Count(addr, ":") > 1 {
			// Multiple colons without brackets: bare IPv6, no port.
			return addr
		}
		return addr[:idx]
	}

	return addr
}

// GetClientIP extracts the client IP for logging and rate limiting.
// Proxy headers are honored only when the connection source is a trusted
// proxy, so a direct client cannot spoof its identity via X-Forwarded-For.
func GetClientIP(r *http.Request, trustedProxies string) string {
	remoteIP := ExtractIP(r.RemoteAddr)

	if !IsTrustedProxyIP(remoteIP, trustedProxies) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client.
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return remoteIP
}
