/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/httpserver"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/middleware"
	"github.com/floodgate/floodgate/profserver"
	"github.com/floodgate/floodgate/service"
	"github.com/floodgate/floodgate/store"
)

// errorDomain is reported in JSON error responses of the daemon.
const errorDomain = "Floodgate"

var (
	serveDryRun          bool
	serveBypassPatterns  []string
	serveBlockSignatures []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admission control daemon",
	Long: `Serve starts an HTTP daemon exposing the admission check endpoint together
with health and metrics endpoints. Expired window records are swept in the
background when eviction is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}

		logger, closeLogger := log.NewLogger(cfg.Log)
		defer closeLogger()

		st, storeCloser, err := store.New(cmd.Context(), cfg.Store, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = storeCloser.Close() }()

		promMetrics := floodgate.NewPrometheusMetrics()
		promMetrics.MustRegister()
		defer promMetrics.Unregister()

		limiter, err := floodgate.NewLimiterWithOpts(st, cfg.RateLimit, floodgate.LimiterOpts{
			Logger:           logger,
			MetricsCollector: promMetrics,
		})
		if err != nil {
			return fmt.Errorf("create limiter: %w", err)
		}
		if len(serveBypassPatterns) != 0 {
			if err := limiter.SetBypassRule(floodgate.GlobBypassRule(serveBypassPatterns...)); err != nil {
				return err
			}
		}

		units := []service.Unit{
			httpserver.New(cfg.Server, logger, newRouter(limiter, cfg, logger)),
		}
		if cfg.ProfServer.Enabled {
			units = append(units, profserver.New(cfg.ProfServer, logger))
		}

		sweeper := floodgate.NewSweeperWithOpts(st, cfg.RateLimit, floodgate.SweeperOpts{
			Logger:           logger,
			MetricsCollector: promMetrics,
		})
		if sweeper.Enabled() {
			sweepWorker := service.NewPeriodicWorker(
				service.WorkerFunc(sweeper.Sweep), sweeper.Period(), log.NewPrefixedLogger(logger, "sweeper: "))
			units = append(units, service.NewWorkerUnit(sweepWorker))
		}

		return service.New(logger, service.NewCompositeUnit(units...)).Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false,
		"log would-be rejections without actually rejecting requests")
	serveCmd.Flags().StringSliceVar(&serveBypassPatterns, "bypass", nil,
		"glob pattern for keys admitted without counting (repeatable)")
	serveCmd.Flags().StringSliceVar(&serveBlockSignatures, "block-signature", nil,
		"reject requests whose User-Agent contains this substring and blacklist their keys (repeatable)")
}

type checkResponse struct {
	Allow bool `json:"allow"`
}

func newRouter(limiter *floodgate.Limiter, cfg *AppConfig, logger log.FieldLogger) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggingWithOpts(logger, middleware.LoggingOpts{
		RequestStart:      cfg.Server.Log.RequestStart,
		ExcludedEndpoints: cfg.Server.Log.ExcludedEndpoints,
	}))

	router.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		middleware.RespondJSON(rw, map[string]string{"status": "ok"}, middleware.GetLoggerFromContext(r.Context()))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		if len(serveBlockSignatures) != 0 {
			r.Use(middleware.BlockSignaturesWithOpts(serveBlockSignatures, errorDomain, middleware.BlockSignaturesOpts{
				GetKey:    checkKey,
				Blacklist: limiter,
			}))
		}
		r.Use(middleware.RateLimitWithOpts(limiter, errorDomain, middleware.RateLimitOpts{
			GetKey: checkKey,
			DryRun: serveDryRun,
		}))
		r.Get("/v1/check", func(rw http.ResponseWriter, r *http.Request) {
			middleware.RespondJSON(rw, checkResponse{Allow: true}, middleware.GetLoggerFromContext(r.Context()))
		})
	})
	return router
}

var clientIPKey = middleware.ClientIPKey(true)

// checkKey admits an explicit ?key= query parameter and falls back to the client IP.
func checkKey(r *http.Request) (key string, bypass bool, err error) {
	if key := r.URL.Query().Get("key"); key != "" {
		return key, false, nil
	}
	return clientIPKey(r)
}
