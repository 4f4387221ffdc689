/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package profserver provides an HTTP server serving the pprof profiling endpoints.
// The server is meant to listen on a separate, non-public address
// and is wired into the daemon as an optional service.Unit.
package profserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/middleware"
	"github.com/floodgate/floodgate/service"
)

// ProfServer is an HTTP server exposing pprof endpoints under /debug.
// It implements the service.Unit interface.
type ProfServer struct {
	URL            string
	HTTPServer     *http.Server
	Logger         log.FieldLogger
	httpServerDone chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new profiling HTTP server.
func New(cfg *Config, logger log.FieldLogger) *ProfServer {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.Logging(logger),
	)
	router.Mount("/debug", chimiddleware.Profiler())

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: time.Second * 5,
	}

	return &ProfServer{
		URL:            "http://" + httpServer.Addr,
		HTTPServer:     httpServer,
		Logger:         logger,
		httpServerDone: make(chan struct{}),
	}
}

// Start starts the profiling HTTP server in a blocking way.
// A fatal error is sent into the passed channel and should be processed outside.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))
	logger.Info("starting profiling HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("profiling HTTP server closed")
			return
		}
		logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops the profiling HTTP server.
// Profiling requests may be long-running, so the server is always closed immediately
// regardless of the gracefully flag.
func (s *ProfServer) Stop(gracefully bool) error {
	s.Logger.Info("closing profiling HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-s.httpServerDone
	return nil
}
