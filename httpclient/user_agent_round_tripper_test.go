/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserAgentRoundTripper_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer server.Close()

	client := &http.Client{Transport: NewUserAgentRoundTripper(http.DefaultTransport, "floodgate-bench/1.0")}

	t.Run("empty header is set", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "floodgate-bench/1.0", string(body))
		require.Empty(t, req.Header.Get("User-Agent"), "the original request should not be mutated")
	})

	t.Run("existing header is kept", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "custom-agent/2.0")

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "custom-agent/2.0", string(body))
	})
}
