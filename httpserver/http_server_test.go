/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/log/logtest"
	"github.com/floodgate/floodgate/middleware"
	"github.com/floodgate/floodgate/testutil"
)

func newCheckRouter() chi.Router {
	router := chi.NewRouter()
	router.Get("/v1/check", func(rw http.ResponseWriter, r *http.Request) {
		logger := middleware.GetLoggerFromContext(r.Context())
		middleware.RespondJSON(rw, map[string]bool{"allow": true}, logger)
	})
	return router
}

func TestHTTPServer_StartWithStaticPort(t *testing.T) {
	testHTTPServerStart(t, testutil.GetLocalFreeTCPPort())
}

func TestHTTPServer_StartWithDynamicPort(t *testing.T) {
	testHTTPServerStart(t, 0)
}

func testHTTPServerStart(t *testing.T, port int) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := New(&Config{Address: addr}, logtest.NewLogger(), newCheckRouter())
	fatalErr := make(chan error, 1)
	go httpServer.Start(fatalErr)

	actualPort, err := testutil.WaitPortAndListeningServer("127.0.0.1", httpServer.GetPort, time.Second*3)
	require.NoError(t, err)
	require.Greater(t, actualPort, 0)
	if port != 0 {
		require.Equal(t, port, actualPort)
	}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", actualPort)

	defer func() {
		require.NoError(t, httpServer.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	resp, err := http.Get(serverURL + "/v1/check")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"allow":true}`, string(respBody))
}

func TestHTTPServer_Start_AddressBusy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { require.NoError(t, ln.Close()) }()

	httpServer := New(&Config{Address: ln.Addr().String()}, logtest.NewLogger(), newCheckRouter())
	fatalErr := make(chan error, 1)
	httpServer.Start(fatalErr)
	require.Error(t, <-fatalErr)
}

func TestHTTPServer_Stop(t *testing.T) {
	newSleepRouter := func() chi.Router {
		router := chi.NewRouter()
		router.Get("/sleep", func(rw http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second * 1) // Long operation.
			logger := middleware.GetLoggerFromContext(r.Context())
			middleware.RespondJSON(rw, map[string]string{"message": "long operation is finished!"}, logger)
		})
		return router
	}

	t.Run("with gracefully shutdown", func(t *testing.T) {
		addr := testutil.GetLocalAddrWithFreeTCPPort()

		cfg := &Config{Address: addr, Timeouts: TimeoutsConfig{Shutdown: config.TimeDuration(time.Second * 3)}}
		httpServer := New(cfg, logtest.NewLogger(), newSleepRouter())
		fatalErr := make(chan error, 1)
		go httpServer.Start(fatalErr)
		require.NoError(t, testutil.WaitListeningServer(addr, time.Second*3))

		done := make(chan bool, 1)
		go func() {
			defer func() { done <- true }()
			c := http.Client{Timeout: time.Second * 5}
			startedAt := time.Now()
			resp, err := c.Get(httpServer.URL + "/sleep")
			if err == nil {
				defer func() { require.NoError(t, resp.Body.Close()) }()
			}
			require.NoError(t, err,
				"server should wait until all HTTP requests are served and only after this close TCP connection")
			require.WithinDuration(t, startedAt.Add(time.Second), time.Now(), time.Millisecond*100)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}()

		time.Sleep(time.Millisecond * 500) // Give time to send request.

		require.NoError(t, httpServer.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)

		<-done
	})

	t.Run("w/o gracefully shutdown", func(t *testing.T) {
		addr := testutil.GetLocalAddrWithFreeTCPPort()

		cfg := &Config{Address: addr, Timeouts: TimeoutsConfig{Shutdown: config.TimeDuration(time.Second * 3)}}
		httpServer := New(cfg, logtest.NewLogger(), newSleepRouter())
		fatalErr := make(chan error, 1)
		go httpServer.Start(fatalErr)
		require.NoError(t, testutil.WaitListeningServer(addr, time.Second*3))

		done := make(chan bool, 1)
		go func() {
			defer func() { done <- true }()
			c := http.Client{Timeout: time.Second * 5}
			startedAt := time.Now()
			resp, err := c.Get(httpServer.URL + "/sleep")
			if err == nil {
				defer func() { require.NoError(t, resp.Body.Close()) }()
			}
			require.WithinDuration(t, startedAt.Add(time.Millisecond*500), time.Now(), time.Millisecond*100)
			require.Error(t, err, "server should close TCP connection immediately")
		}()

		time.Sleep(time.Millisecond * 500) // Give time to send request.

		require.NoError(t, httpServer.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)

		<-done
	})
}

func TestHTTPServer_Stop_Without_Start(t *testing.T) {
	t.Run("with graceful shutdown", func(t *testing.T) {
		addr := testutil.GetLocalAddrWithFreeTCPPort()
		cfg := &Config{Address: addr, Timeouts: TimeoutsConfig{Shutdown: config.TimeDuration(time.Second * 3)}}
		httpServer := New(cfg, logtest.NewLogger(), newCheckRouter())

		require.NoError(t, httpServer.Stop(true))
	})

	t.Run("w/o graceful shutdown", func(t *testing.T) {
		addr := testutil.GetLocalAddrWithFreeTCPPort()
		cfg := &Config{Address: addr, Timeouts: TimeoutsConfig{Shutdown: config.TimeDuration(time.Second * 3)}}
		httpServer := New(cfg, logtest.NewLogger(), newCheckRouter())

		require.NoError(t, httpServer.Stop(false))
	})
}
