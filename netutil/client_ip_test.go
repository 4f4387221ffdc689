/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package netutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trust      bool
		want       string
	}{
		{
			name:       "remote addr host",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "remote addr ipv6",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded for single",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			trust:      true,
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded for chain keeps leftmost",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.2, 10.0.0.3"},
			trust:      true,
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded for ignored when not trusted",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4"},
			want:       "10.0.0.1",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			trust:      true,
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded for wins over real ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4", "X-Real-IP": "198.51.100.5"},
			trust:      true,
			want:       "198.51.100.4",
		},
		{
			name:       "blank forwarded for falls through",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "  ", "X-Real-IP": "198.51.100.5"},
			trust:      true,
			want:       "198.51.100.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientIP(r, tt.trust))
		})
	}
}
