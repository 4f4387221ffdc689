/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package httpserver provides a wrapper around http.Server with graceful
// shutdown and the service.Unit lifecycle.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/service"
)

// HTTPServer represents a wrapper around http.Server with additional fields and methods.
// It implements the service.Unit interface.
type HTTPServer struct {
	URL             string
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	listener       net.Listener
	port           int32
	httpServerDone atomic.Value
}

var _ service.Unit = (*HTTPServer)(nil)

// New creates a new HTTPServer serving the passed handler.
func New(cfg *Config, logger log.FieldLogger, handler http.Handler) *HTTPServer {
	httpServer := &http.Server{
		Addr:              cfg.Address,
		WriteTimeout:      time.Duration(cfg.Timeouts.Write),
		ReadTimeout:       time.Duration(cfg.Timeouts.Read),
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeader),
		IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
		Handler:           handler,
	}
	return &HTTPServer{
		URL:             "http://" + httpServer.Addr,
		HTTPServer:      httpServer,
		Logger:          logger,
		ShutdownTimeout: time.Duration(cfg.Timeouts.Shutdown),
	}
}

// Start starts HTTP server in a blocking way.
// It's supposed that this method will be called in a separate goroutine.
// If a fatal error occurs, it will be sent to the fatalError channel.
func (s *HTTPServer) Start(fatalError chan<- error) {
	done := make(chan struct{})
	defer close(done)
	s.httpServerDone.Store(done)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("read_header_timeout", s.HTTPServer.ReadHeaderTimeout),
		log.Duration("idle_timeout", s.HTTPServer.IdleTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting HTTP server...")

	var err error
	if s.listener, err = net.Listen("tcp", s.HTTPServer.Addr); err != nil {
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
		return
	}

	var portStr string
	if _, portStr, err = net.SplitHostPort(s.listener.Addr().String()); err != nil {
		logger.Error("unexpected format of TCP listener address: unable to split host and port", log.Error(err))
		fatalError <- err
		return
	}
	var port int64
	if port, err = strconv.ParseInt(portStr, 10, 32); err != nil {
		logger.Error("unexpected format of TCP listener address: no numeric port", log.Error(err))
		fatalError <- err
		return
	}
	atomic.StoreInt32(&s.port, int32(port))

	if err = s.HTTPServer.Serve(s.listener); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("HTTP server closed")
			return
		}
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops HTTP server (gracefully or not).
func (s *HTTPServer) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		s.waitDone()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.Logger.Info("shutting down HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server shutting down error", log.Error(err))
		return err
	}
	s.Logger.Info("HTTP server shut down")

	s.waitDone()
	return nil
}

// GetPort returns the port the server is listening on.
// Zero is returned until the listener is bound, which makes the method
// useful together with the ":0" address in tests.
func (s *HTTPServer) GetPort() int {
	return int(atomic.LoadInt32(&s.port))
}

// waitDone waits for the listener to be closed.
func (s *HTTPServer) waitDone() {
	if done, ok := s.httpServerDone.Load().(chan struct{}); ok && done != nil {
		<-done
	}
}
