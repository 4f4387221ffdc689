/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/store"
)

// storeHandle bundles an opened store with a limiter built on top of it.
type storeHandle struct {
	cfg     *AppConfig
	store   floodgate.Store
	limiter *floodgate.Limiter
	closer  io.Closer
}

func (h *storeHandle) Close() error {
	return h.closer.Close()
}

// openStore loads the configuration and connects to the configured backend.
// The returned handle must be closed by the caller.
func openStore(ctx context.Context) (*storeHandle, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	st, closer, err := store.New(ctx, cfg.Store, log.NewDisabledLogger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	limiter, err := floodgate.NewLimiter(st, cfg.RateLimit)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &storeHandle{cfg: cfg, store: st, limiter: limiter, closer: closer}, nil
}
