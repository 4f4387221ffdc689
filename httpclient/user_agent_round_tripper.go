/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package httpclient

import "net/http"

// UserAgentRoundTripper implements http.RoundTripper interface
// and sets the User-Agent header in outgoing requests that have none.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(r)
	}
	r = CloneHTTPRequest(r) // Per RoundTripper contract.
	r.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(r)
}
