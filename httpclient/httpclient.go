/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package httpclient builds HTTP clients that behave well when calling
// rate-limited services. The transport paces outgoing requests on the client
// side and can honor the Retry-After header of 429 responses.
package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultClientTimeout is the total request timeout used by New
// when Opts.Timeout is zero.
const DefaultClientTimeout = 30 * time.Second

// Opts configures the client returned by New.
type Opts struct {
	// UserAgent is set on outgoing requests that have no User-Agent header.
	UserAgent string

	// RateLimit paces outgoing requests to this many per second.
	// Zero disables client-side pacing.
	RateLimit float64

	// RateLimitBurst is the pacing burst. Zero means a burst of one.
	RateLimitBurst int

	// RateLimitWaitTimeout bounds how long a request may wait for a pacing slot.
	RateLimitWaitTimeout time.Duration

	// HonorRetryAfter delays sending until the moment advertised by the
	// Retry-After header of a 429 response.
	HonorRetryAfter bool

	// Timeout is the total request timeout of the client.
	// Zero means DefaultClientTimeout, a negative value disables the timeout.
	Timeout time.Duration

	// Delegate is the innermost round tripper. http.DefaultTransport is used when nil.
	Delegate http.RoundTripper
}

// New creates an *http.Client wrapping the delegate transport
// with pacing, user agent and request id support.
func New(opts Opts) (*http.Client, error) {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if opts.RateLimit > 0 {
		var err error
		delegate, err = NewPacingRoundTripperWithOpts(delegate, opts.RateLimit, PacingRoundTripperOpts{
			Burst:           opts.RateLimitBurst,
			WaitTimeout:     opts.RateLimitWaitTimeout,
			HonorRetryAfter: opts.HonorRetryAfter,
		})
		if err != nil {
			return nil, fmt.Errorf("create pacing round tripper: %w", err)
		}
	}

	if opts.UserAgent != "" {
		delegate = NewUserAgentRoundTripper(delegate, opts.UserAgent)
	}
	delegate = NewRequestIDRoundTripper(delegate)

	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultClientTimeout
	case timeout < 0:
		timeout = 0
	}
	return &http.Client{Transport: delegate, Timeout: timeout}, nil
}

// Must is like New but panics if the client cannot be created.
func Must(opts Opts) *http.Client {
	client, err := New(opts)
	if err != nil {
		panic(err)
	}
	return client
}

// CloneHTTPRequest creates a shallow copy of the request along with a deep copy of the Headers.
func CloneHTTPRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = CloneHTTPHeader(req.Header)
	return r
}

// CloneHTTPHeader creates a deep copy of an http.Header.
func CloneHTTPHeader(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		newValues := make([]string, len(values))
		copy(newValues, values)
		out[key] = newValues
	}
	return out
}
