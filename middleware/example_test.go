/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package middleware

import (
	stdlog "log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/store/memstore"
)

func Example() {
	const errDomain = "MyService"

	logger, closeFn := log.NewLogger(&log.Config{Output: log.OutputStdout, Format: log.FormatJSON})
	defer closeFn()

	cfg := floodgate.NewDefaultConfig()
	cfg.Amount = 100
	limiter, err := floodgate.NewLimiter(memstore.New(), cfg)
	if err != nil {
		stdlog.Fatal(err)
	}

	router := chi.NewRouter()

	router.Use(
		RequestID(),
		LoggingWithOpts(logger, LoggingOpts{ExcludedEndpoints: []string{"/healthz"}}),
		BlockSignaturesWithOpts([]string{"sqlmap", "zgrab"}, errDomain, BlockSignaturesOpts{
			Blacklist: limiter,
		}),
		RateLimitWithOpts(limiter, errDomain, RateLimitOpts{TrustProxyHeaders: true}),
	)

	router.Get("/v1/check", func(rw http.ResponseWriter, r *http.Request) {
		RespondJSON(rw, map[string]bool{"allow": true}, GetLoggerFromContext(r.Context()))
	})

	router.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
}
