/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/netutil"
)

// RateLimitErrCode is an error code that is used in a response body
// if the request is rejected because its key is over the limit.
const RateLimitErrCode = "tooManyRequests"

// RateLimitBlacklistedErrCode is an error code that is used in a response body
// if the request is rejected because its key is blacklisted.
const RateLimitBlacklistedErrCode = "blacklisted"

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the admission control.
const RateLimitLogFieldKey = "rate_limit_key"

// RateLimitParams contains data that relates to the admission procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ErrDomain          string
	ResponseStatusCode int
	Key                string
	Decision           floodgate.Decision
}

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request
// when the key is throttled or blacklisted.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when an error occurs before the admission check
// (for example, the key cannot be extracted from the request).
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting the admission key for the request.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

type rateLimitHandler struct {
	next           http.Handler
	limiter        *floodgate.Limiter
	getKey         RateLimitGetKeyFunc
	errDomain      string
	respStatusCode int

	onReject RateLimitOnRejectFunc
	onError  RateLimitOnErrorFunc
}

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// GetKey extracts the admission key from the request.
	// If not set, the client IP address is used (see ClientIPKey).
	GetKey RateLimitGetKeyFunc

	// TrustProxyHeaders tells the default key extractor to honor
	// the X-Forwarded-For and X-Real-IP headers.
	TrustProxyHeaders bool

	// ResponseStatusCode is an HTTP status code for rejected requests. 429 by default.
	ResponseStatusCode int

	// DryRun makes the middleware log would-be rejections and serve the requests anyway.
	// The limiter still observes requests and updates its state.
	DryRun bool

	OnReject         RateLimitOnRejectFunc
	OnRejectInDryRun RateLimitOnRejectFunc
	OnError          RateLimitOnErrorFunc
}

// RateLimit is a middleware that performs admission control for HTTP requests
// keyed by the client IP address.
func RateLimit(limiter *floodgate.Limiter, errDomain string) func(next http.Handler) http.Handler {
	return RateLimitWithOpts(limiter, errDomain, RateLimitOpts{})
}

// RateLimitWithOpts is a more configurable version of the RateLimit middleware.
func RateLimitWithOpts(
	limiter *floodgate.Limiter, errDomain string, opts RateLimitOpts,
) func(next http.Handler) http.Handler {
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}
	getKey := opts.GetKey
	if getKey == nil {
		getKey = ClientIPKey(opts.TrustProxyHeaders)
	}
	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{
			next:           next,
			limiter:        limiter,
			getKey:         getKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			onReject:       makeRateLimitOnRejectFunc(opts),
			onError:        makeRateLimitOnErrorFunc(opts),
		}
	}
}

// ClientIPKey returns a key extractor that uses the client IP address as the admission key.
func ClientIPKey(trustProxyHeaders bool) RateLimitGetKeyFunc {
	return func(r *http.Request) (key string, bypass bool, err error) {
		return netutil.ClientIP(r, trustProxyHeaders), false, nil
	}
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromContext(r.Context())

	key, bypass, err := h.getKey(r)
	if err != nil {
		h.onError(rw, r, h.makeParams("", floodgate.Decision{}),
			fmt.Errorf("get key for admission control: %w", err), h.next, logger)
		return
	}
	if bypass {
		h.next.ServeHTTP(rw, r)
		return
	}

	decision := h.limiter.Decide(r.Context(), key)
	if decision.Admitted() {
		h.next.ServeHTTP(rw, r)
		return
	}
	h.onReject(rw, r, h.makeParams(key, decision), h.next, logger)
}

func (h *rateLimitHandler) makeParams(key string, decision floodgate.Decision) RateLimitParams {
	return RateLimitParams{
		ErrDomain:          h.errDomain,
		ResponseStatusCode: h.respStatusCode,
		Key:                key,
		Decision:           decision,
	}
}

// DefaultRateLimitOnReject sends an error response when the key is throttled or blacklisted.
// Throttled keys get a Retry-After header with the wait time rounded up to whole seconds.
func DefaultRateLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	if params.Decision.Outcome == floodgate.OutcomeBlacklisted {
		apiErr := NewError(params.ErrDomain, RateLimitBlacklistedErrCode, "Key is blacklisted.")
		RespondError(rw, params.ResponseStatusCode, apiErr, logger)
		return
	}
	rw.Header().Set("Retry-After", strconv.Itoa(params.Decision.RetryAfterSeconds()))
	apiErr := NewError(params.ErrDomain, RateLimitErrCode, "Too many requests.")
	RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// DefaultRateLimitOnError logs the occurred error and passes the request to the next handler.
// A request whose key cannot be determined is served, not rejected.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	next.ServeHTTP(rw, r)
}

// DefaultRateLimitOnRejectInDryRun logs the would-be rejection and passes the request to the next handler.
func DefaultRateLimitOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("request would be rejected, serving will be continued because of dry run mode",
			log.String(RateLimitLogFieldKey, params.Key),
			log.String("outcome", params.Decision.Outcome.String()),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeRateLimitOnRejectFunc(opts RateLimitOpts) RateLimitOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultRateLimitOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultRateLimitOnReject
}

func makeRateLimitOnErrorFunc(opts RateLimitOpts) RateLimitOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultRateLimitOnError
}
