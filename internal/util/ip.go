package util

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the true client IP address from a request,
// considering X-Forwarded-For headers if present (e.g. from Ingress/Nginx).
// The /nic/ip endpoint returns exactly this value.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For carries "client, proxy1, proxy2"; the first entry is
	// the client.
	xForwardedFor := r.Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	xRealIP := r.Header.Get("X-Real-IP")
	if xRealIP != "" {
		return strings.TrimSpace(xRealIP)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return ip
	}

	return r.RemoteAddr
}
