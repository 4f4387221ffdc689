/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package netutil

import (
	"net"
	"net/http"
	"strings"
)

// Headers consulted by ClientIP when proxy headers are trusted.
const (
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
)

// ClientIP returns the IP address of the client that sent the request.
//
// When trustProxyHeaders is true, the leftmost X-Forwarded-For entry wins,
// then X-Real-IP. Both headers are client-controlled, trust them only behind
// a proxy that overwrites them. Without trusted headers the host part of
// RemoteAddr is returned.
func ClientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get(HeaderXRealIP)); ip != "" {
			return ip
		}
	}
	remoteAddr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
