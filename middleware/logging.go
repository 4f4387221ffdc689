/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/netutil"
)

const userAgentLogFieldKey = "user_agent"

// LoggingOpts represents an options for Logging middleware.
type LoggingOpts struct {
	// RequestStart determines if the message about the request start should be logged.
	RequestStart bool

	// ExcludedEndpoints contains a list of endpoints (paths) for which successful
	// requests will not be logged. Requests that end with an error are logged anyway.
	ExcludedEndpoints []string
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
	opts   LoggingOpts
}

// Logging is a middleware that logs info about HTTP request and response.
// Also, it puts logger (with external and internal request's ids in fields) into request's context.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return LoggingWithOpts(logger, LoggingOpts{})
}

// LoggingWithOpts is a more configurable version of Logging middleware.
func LoggingWithOpts(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger, opts: opts}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	loggerForNext := h.logger.With(
		log.String("request_id", GetRequestIDFromContext(ctx)),
		log.String("int_request_id", GetInternalRequestIDFromContext(ctx)),
	)

	logFields := make([]log.Field, 0, 6)
	logFields = append(
		logFields,
		log.String("method", r.Method),
		log.String("uri", r.RequestURI),
		log.String("remote_addr", r.RemoteAddr),
		log.String(userAgentLogFieldKey, r.UserAgent()),
	)
	if r.Header.Get(netutil.HeaderXForwardedFor) != "" || r.Header.Get(netutil.HeaderXRealIP) != "" {
		logFields = append(logFields, log.String("origin_addr", netutil.ClientIP(r, true)))
	}
	logger := loggerForNext.With(logFields...)

	noLog := isLoggingDisabled(r.URL.Path, h.opts.ExcludedEndpoints)

	if h.opts.RequestStart && !noLog {
		logger.Info("request started")
	}

	r = r.WithContext(NewContextWithLogger(ctx, loggerForNext))
	wrw := chimiddleware.NewWrapResponseWriter(rw, r.ProtoMajor)
	h.next.ServeHTTP(wrw, r)

	if !noLog || wrw.Status() >= http.StatusBadRequest {
		duration := time.Since(startTime)
		logger.Info(
			fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
			log.Int64("duration_ms", duration.Milliseconds()),
			log.Int("status", wrw.Status()),
			log.Int("bytes_sent", wrw.BytesWritten()),
		)
	}
}

func isLoggingDisabled(urlPath string, noLogEndpoints []string) bool {
	for _, endpoint := range noLogEndpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}
