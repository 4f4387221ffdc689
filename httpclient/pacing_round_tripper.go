/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default parameter values for PacingRoundTripper.
const (
	DefaultPacingBurst       = 1
	DefaultPacingWaitTimeout = 15 * time.Second
)

// PacingRoundTripperOpts represents options for PacingRoundTripper.
type PacingRoundTripperOpts struct {
	// Burst is the number of requests that may be sent at once. Zero means one.
	Burst int

	// WaitTimeout bounds how long a request may wait for a pacing slot.
	// Zero means DefaultPacingWaitTimeout.
	WaitTimeout time.Duration

	// HonorRetryAfter delays subsequent requests until the moment advertised
	// by the Retry-After header of a 429 response. Only the delta-seconds
	// form of the header is recognized.
	HonorRetryAfter bool
}

// PacingRoundTripper wraps an object implementing the http.RoundTripper
// interface and paces outgoing requests with a client-side token bucket.
// With HonorRetryAfter it also backs off while a called service reports 429.
type PacingRoundTripper struct {
	Delegate http.RoundTripper

	limiter *rate.Limiter

	WaitTimeout     time.Duration
	HonorRetryAfter bool

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewPacingRoundTripper creates a new PacingRoundTripper
// sending at most rps requests per second.
func NewPacingRoundTripper(delegate http.RoundTripper, rps float64) (*PacingRoundTripper, error) {
	return NewPacingRoundTripperWithOpts(delegate, rps, PacingRoundTripperOpts{})
}

// NewPacingRoundTripperWithOpts creates a new PacingRoundTripper with options.
// For options that are not presented, the default values will be used.
func NewPacingRoundTripperWithOpts(
	delegate http.RoundTripper, rps float64, opts PacingRoundTripperOpts,
) (*PacingRoundTripper, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("rate must be positive")
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must not be negative")
	}
	if opts.Burst == 0 {
		opts.Burst = DefaultPacingBurst
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultPacingWaitTimeout
	}
	return &PacingRoundTripper{
		Delegate:        delegate,
		limiter:         rate.NewLimiter(rate.Limit(rps), opts.Burst),
		WaitTimeout:     opts.WaitTimeout,
		HonorRetryAfter: opts.HonorRetryAfter,
	}, nil
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *PacingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.limiter.Wait(ctx); err != nil {
		closeRequestBody(r)
		return nil, &PacingWaitError{Inner: err}
	}
	if rt.HonorRetryAfter {
		if err := rt.waitPause(ctx); err != nil {
			closeRequestBody(r)
			return nil, &PacingWaitError{Inner: err}
		}
	}

	resp, err := rt.Delegate.RoundTrip(r)
	if err != nil {
		return resp, err
	}

	if rt.HonorRetryAfter && resp.StatusCode == http.StatusTooManyRequests {
		rt.notePause(resp)
	}
	return resp, nil
}

// waitPause blocks until the pause advertised by the last 429 response is over.
func (rt *PacingRoundTripper) waitPause(ctx context.Context) error {
	rt.mu.Lock()
	pausedUntil := rt.pausedUntil
	rt.mu.Unlock()

	wait := time.Until(pausedUntil)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (rt *PacingRoundTripper) notePause(resp *http.Response) {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return
	}
	pausedUntil := time.Now().Add(time.Duration(seconds) * time.Second)
	rt.mu.Lock()
	if pausedUntil.After(rt.pausedUntil) {
		rt.pausedUntil = pausedUntil
	}
	rt.mu.Unlock()
}

// closeRequestBody releases the request body when the request is not passed
// on to the delegate. Per the RoundTripper contract the transport owns the
// body once RoundTrip is called.
func closeRequestBody(r *http.Request) {
	if r.Body != nil {
		_ = r.Body.Close()
	}
}

// PacingWaitError is returned in RoundTrip method of PacingRoundTripper
// when the request cannot be sent before the wait timeout expires.
type PacingWaitError struct {
	Inner error
}

func (e *PacingWaitError) Error() string {
	return fmt.Sprintf("wait due to client-side pacing: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *PacingWaitError) Unwrap() error {
	return e.Inner
}
