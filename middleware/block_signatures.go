/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudflare/ahocorasick"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/log"
)

const blockedSignatureLogFieldKey = "blocked_signature"

// Blacklister permanently rejects keys until an operator clears them.
// *floodgate.Limiter implements it.
type Blacklister interface {
	AddToBlacklist(ctx context.Context, key string) error
}

// BlockSignaturesOpts represents an options for BlockSignatures middleware.
type BlockSignaturesOpts struct {
	// GetKey extracts the admission key from the request.
	// If not set, the client IP address is used (see ClientIPKey).
	GetKey RateLimitGetKeyFunc

	// TrustProxyHeaders tells the default key extractor to honor
	// the X-Forwarded-For and X-Real-IP headers.
	TrustProxyHeaders bool

	// ResponseStatusCode is an HTTP status code for blocked requests. 429 by default.
	ResponseStatusCode int

	// Blacklist, if set, receives the key of every blocked request,
	// so that subsequent requests are rejected before matching.
	Blacklist Blacklister
}

type blockSignaturesHandler struct {
	next           http.Handler
	matcher        *ahocorasick.Matcher
	signatures     []string
	getKey         RateLimitGetKeyFunc
	errDomain      string
	respStatusCode int
	blacklist      Blacklister
}

// BlockSignatures is a middleware that rejects requests whose User-Agent header
// contains any of the given substrings. Keys extracted with GetKey and marked
// as bypass are exempt from matching.
func BlockSignatures(signatures []string, errDomain string) func(next http.Handler) http.Handler {
	return BlockSignaturesWithOpts(signatures, errDomain, BlockSignaturesOpts{})
}

// BlockSignaturesWithOpts is a more configurable version of BlockSignatures middleware.
func BlockSignaturesWithOpts(
	signatures []string, errDomain string, opts BlockSignaturesOpts,
) func(next http.Handler) http.Handler {
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}
	getKey := opts.GetKey
	if getKey == nil {
		getKey = ClientIPKey(opts.TrustProxyHeaders)
	}
	matcher := ahocorasick.NewStringMatcher(signatures)
	return func(next http.Handler) http.Handler {
		return &blockSignaturesHandler{
			next:           next,
			matcher:        matcher,
			signatures:     signatures,
			getKey:         getKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			blacklist:      opts.Blacklist,
		}
	}
}

func (h *blockSignaturesHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	matches := h.matcher.MatchThreadSafe([]byte(r.UserAgent()))
	if len(matches) == 0 {
		h.next.ServeHTTP(rw, r)
		return
	}

	logger := GetLoggerFromContext(r.Context())

	// If the key cannot be extracted, the request is still rejected,
	// only the blacklist escalation is skipped.
	key, bypass, err := h.getKey(r)
	if err != nil {
		if logger != nil {
			logger.Error("get key for signature block", log.Error(err))
		}
		key = ""
	}
	if bypass {
		h.next.ServeHTTP(rw, r)
		return
	}

	if logger != nil {
		logger = logger.With(
			log.String(blockedSignatureLogFieldKey, h.signatures[matches[0]]),
			log.String(RateLimitLogFieldKey, key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}

	if h.blacklist != nil && key != "" {
		if bErr := h.blacklist.AddToBlacklist(r.Context(), key); bErr != nil && !errors.Is(bErr, floodgate.ErrAlreadyBlacklisted) {
			if logger != nil {
				logger.Error("add key to blacklist", log.Error(bErr))
			}
		}
	}

	apiErr := NewError(h.errDomain, RateLimitBlacklistedErrCode, "Request signature is blocked.")
	RespondError(rw, h.respStatusCode, apiErr, logger)
}
