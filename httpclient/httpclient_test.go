/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate/middleware"
)

func TestNew(t *testing.T) {
	t.Run("default timeout is applied", func(t *testing.T) {
		client, err := New(Opts{})
		require.NoError(t, err)
		require.Equal(t, DefaultClientTimeout, client.Timeout)
	})

	t.Run("negative timeout disables the timeout", func(t *testing.T) {
		client, err := New(Opts{Timeout: -1})
		require.NoError(t, err)
		require.Zero(t, client.Timeout)
	})

	t.Run("invalid pacing options are reported", func(t *testing.T) {
		_, err := New(Opts{RateLimit: 1, RateLimitBurst: -1})
		require.ErrorContains(t, err, "create pacing round tripper")
	})

	t.Run("transports are composed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			_, _ = rw.Write([]byte(r.Header.Get("User-Agent") + "|" + r.Header.Get("X-Request-ID")))
		}))
		defer server.Close()

		client, err := New(Opts{UserAgent: "floodgate/1.0", RateLimit: 100})
		require.NoError(t, err)

		ctx := middleware.NewContextWithRequestID(context.Background(), "req-42")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "floodgate/1.0|req-42", string(body))
	})
}

func TestMust(t *testing.T) {
	require.NotNil(t, Must(Opts{}))
	require.Panics(t, func() {
		Must(Opts{RateLimit: 1, RateLimitBurst: -1})
	})
}

func TestCloneHTTPHeader(t *testing.T) {
	in := http.Header{"X-Key": {"a", "b"}}
	out := CloneHTTPHeader(in)
	require.Equal(t, in, out)

	out.Add("X-Key", "c")
	require.Equal(t, []string{"a", "b"}, in["X-Key"], "the original header should not be affected")
}
