/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/store/memstore"
)

func newTestRouterConfig(amount int, window time.Duration) *AppConfig {
	cfg := newDefaultAppConfig()
	cfg.RateLimit.Amount = amount
	cfg.RateLimit.WindowDuration = config.TimeDuration(window)
	return cfg
}

func TestNewRouter(t *testing.T) {
	cfg := newTestRouterConfig(2, time.Minute)
	limiter, err := floodgate.NewLimiter(memstore.New(), cfg.RateLimit)
	require.NoError(t, err)
	router := newRouter(limiter, cfg, log.NewDisabledLogger())

	t.Run("check admits until the amount is exhausted", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			respRec := httptest.NewRecorder()
			router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/v1/check?key=tenant-1", nil))
			require.Equal(t, http.StatusOK, respRec.Code)
			require.JSONEq(t, `{"allow":true}`, respRec.Body.String())
		}

		respRec := httptest.NewRecorder()
		router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/v1/check?key=tenant-1", nil))
		require.Equal(t, http.StatusTooManyRequests, respRec.Code)
		require.Equal(t, "60", respRec.Header().Get("Retry-After"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		respRec := httptest.NewRecorder()
		router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/v1/check?key=tenant-2", nil))
		require.Equal(t, http.StatusOK, respRec.Code)
	})

	t.Run("client IP is the key when none is given", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/check", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		for i := 0; i < 2; i++ {
			respRec := httptest.NewRecorder()
			router.ServeHTTP(respRec, req)
			require.Equal(t, http.StatusOK, respRec.Code)
		}
		respRec := httptest.NewRecorder()
		router.ServeHTTP(respRec, req)
		require.Equal(t, http.StatusTooManyRequests, respRec.Code)
	})

	t.Run("health endpoint is not limited", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			respRec := httptest.NewRecorder()
			router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, http.StatusOK, respRec.Code)
			require.JSONEq(t, `{"status":"ok"}`, respRec.Body.String())
		}
	})

	t.Run("metrics endpoint serves prometheus text", func(t *testing.T) {
		respRec := httptest.NewRecorder()
		router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, respRec.Code)
		require.Contains(t, respRec.Body.String(), "go_goroutines")
	})
}

func TestNewRouter_BlockSignatures(t *testing.T) {
	serveBlockSignatures = []string{"EvilBot"}
	t.Cleanup(func() { serveBlockSignatures = nil })

	cfg := newTestRouterConfig(100, time.Minute)
	limiter, err := floodgate.NewLimiter(memstore.New(), cfg.RateLimit)
	require.NoError(t, err)
	router := newRouter(limiter, cfg, log.NewDisabledLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/check?key=attacker", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 EvilBot/1.0")
	respRec := httptest.NewRecorder()
	router.ServeHTTP(respRec, req)
	require.Equal(t, http.StatusTooManyRequests, respRec.Code)
	require.JSONEq(t,
		`{"error":{"domain":"Floodgate","code":"blacklisted","message":"Request signature is blocked."}}`,
		respRec.Body.String())

	// The key stays rejected even with an innocuous User-Agent.
	req = httptest.NewRequest(http.MethodGet, "/v1/check?key=attacker", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	respRec = httptest.NewRecorder()
	router.ServeHTTP(respRec, req)
	require.Equal(t, http.StatusTooManyRequests, respRec.Code)
	require.JSONEq(t,
		`{"error":{"domain":"Floodgate","code":"blacklisted","message":"Key is blacklisted."}}`,
		respRec.Body.String())
}

func TestNewRouter_DryRun(t *testing.T) {
	serveDryRun = true
	t.Cleanup(func() { serveDryRun = false })

	cfg := newTestRouterConfig(1, time.Minute)
	limiter, err := floodgate.NewLimiter(memstore.New(), cfg.RateLimit)
	require.NoError(t, err)
	router := newRouter(limiter, cfg, log.NewDisabledLogger())

	for i := 0; i < 5; i++ {
		respRec := httptest.NewRecorder()
		router.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/v1/check?key=tenant-1", nil))
		require.Equal(t, http.StatusOK, respRec.Code)
		require.JSONEq(t, `{"allow":true}`, respRec.Body.String())
	}
}
