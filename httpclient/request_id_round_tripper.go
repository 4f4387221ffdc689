/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/floodgate/floodgate/middleware"
)

// RequestIDRoundTripper adds the X-Request-ID header to outgoing requests.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
}

// NewRequestIDRoundTripper creates an HTTP transport with X-Request-ID header support.
func NewRequestIDRoundTripper(delegate http.RoundTripper) *RequestIDRoundTripper {
	return &RequestIDRoundTripper{Delegate: delegate}
}

// RoundTrip propagates the request id from the context, if any.
// A header already present on the request is left as is.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	requestID := middleware.GetRequestIDFromContext(r.Context())
	if r.Header.Get("X-Request-ID") != "" || requestID == "" {
		return rt.Delegate.RoundTrip(r)
	}

	r = CloneHTTPRequest(r)
	r.Header.Set("X-Request-ID", requestID)
	return rt.Delegate.RoundTrip(r)
}
