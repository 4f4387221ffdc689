/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type responseInfo struct {
	resp       *http.Response
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

func doGet(c *http.Client, url string) responseInfo {
	startedAt := time.Now()
	resp, err := c.Get(url)
	finishedAt := time.Now()
	if err == nil {
		_ = resp.Body.Close()
	}
	return responseInfo{resp, err, startedAt, finishedAt}
}

func TestNewPacingRoundTripper(t *testing.T) {
	tests := []struct {
		Name       string
		Rate       float64
		Opts       PacingRoundTripperOpts
		WantErrMsg string
	}{
		{
			Name:       "rate is negative",
			Rate:       -1,
			WantErrMsg: "rate must be positive",
		},
		{
			Name:       "rate is zero",
			Rate:       0,
			WantErrMsg: "rate must be positive",
		},
		{
			Name:       "burst is negative",
			Rate:       1,
			Opts:       PacingRoundTripperOpts{Burst: -1},
			WantErrMsg: "burst must not be negative",
		},
		{
			Name: "defaults are applied",
			Rate: 1,
		},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.Name, func(t *testing.T) {
			rt, err := NewPacingRoundTripperWithOpts(http.DefaultTransport, tt.Rate, tt.Opts)
			if tt.WantErrMsg != "" {
				require.EqualError(t, err, tt.WantErrMsg)
				require.Nil(t, rt)
				return
			}
			require.NoError(t, err)
			require.Equal(t, DefaultPacingWaitTimeout, rt.WaitTimeout)
		})
	}
}

func TestPacingRoundTripper_RoundTrip(t *testing.T) {
	const allowedTimeDeviation = time.Millisecond * 100

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("ok"))
	}))
	defer server.Close()

	makeClient := func(rps float64, waitTimeout time.Duration) *http.Client {
		tr, err := NewPacingRoundTripperWithOpts(
			http.DefaultTransport, rps, PacingRoundTripperOpts{WaitTimeout: waitTimeout})
		require.NoError(t, err)
		return &http.Client{Transport: tr}
	}

	t.Run("the 2nd request is paced", func(t *testing.T) {
		client := makeClient(1, time.Second*2)
		var respInfo responseInfo

		// The first request should be completed immediately.
		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusOK, respInfo.resp.StatusCode)
		require.WithinDuration(t, respInfo.startedAt, respInfo.finishedAt, allowedTimeDeviation)

		// The second request should wait for a pacing slot.
		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusOK, respInfo.resp.StatusCode)
		require.WithinDuration(t, respInfo.startedAt.Add(time.Second), respInfo.finishedAt, allowedTimeDeviation)
	})

	t.Run("waiting for a slot times out", func(t *testing.T) {
		client := makeClient(1, time.Millisecond*500)
		var respInfo responseInfo

		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err, "the 1st request should be finished without error")

		// The second slot is a second away, which is more than the wait timeout allows.
		respInfo = doGet(client, server.URL)
		var waitErr *PacingWaitError
		require.ErrorAs(t, respInfo.err, &waitErr)
		require.ErrorContains(t, respInfo.err, "wait due to client-side pacing")
		require.WithinDuration(t, respInfo.startedAt, respInfo.finishedAt, allowedTimeDeviation,
			"the wait error should be returned immediately")
	})
}

func TestPacingRoundTripper_HonorRetryAfter(t *testing.T) {
	const allowedTimeDeviation = time.Millisecond * 200

	// The first request gets a 429 with the given Retry-After header, the rest succeed.
	makeServer := func(retryAfter string) *httptest.Server {
		var requestsSeen int32
		return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requestsSeen, 1) == 1 {
				if retryAfter != "" {
					rw.Header().Set("Retry-After", retryAfter)
				}
				rw.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = rw.Write([]byte("ok"))
		}))
	}

	makeClient := func(honorRetryAfter bool) *http.Client {
		tr, err := NewPacingRoundTripperWithOpts(http.DefaultTransport, 100, PacingRoundTripperOpts{
			WaitTimeout:     time.Second * 5,
			HonorRetryAfter: honorRetryAfter,
		})
		require.NoError(t, err)
		return &http.Client{Transport: tr}
	}

	t.Run("the advertised pause is waited out", func(t *testing.T) {
		server := makeServer("1")
		defer server.Close()
		client := makeClient(true)

		respInfo := doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusTooManyRequests, respInfo.resp.StatusCode)

		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusOK, respInfo.resp.StatusCode)
		require.WithinDuration(t, respInfo.startedAt.Add(time.Second), respInfo.finishedAt, allowedTimeDeviation,
			"the 2nd request should be delayed until the advertised moment")
	})

	t.Run("malformed Retry-After is ignored", func(t *testing.T) {
		server := makeServer("soon")
		defer server.Close()
		client := makeClient(true)

		respInfo := doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusTooManyRequests, respInfo.resp.StatusCode)

		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusOK, respInfo.resp.StatusCode)
		require.WithinDuration(t, respInfo.startedAt, respInfo.finishedAt, allowedTimeDeviation)
	})

	t.Run("the pause is not applied when disabled", func(t *testing.T) {
		server := makeServer("1")
		defer server.Close()
		client := makeClient(false)

		respInfo := doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusTooManyRequests, respInfo.resp.StatusCode)

		respInfo = doGet(client, server.URL)
		require.NoError(t, respInfo.err)
		require.Equal(t, http.StatusOK, respInfo.resp.StatusCode)
		require.WithinDuration(t, respInfo.startedAt, respInfo.finishedAt, allowedTimeDeviation)
	})
}
