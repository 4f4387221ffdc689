/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"context"
	"time"

	"github.com/floodgate/floodgate/log"
)

// SweeperOpts represents options for Sweeper.
type SweeperOpts struct {
	// Logger is used for logging sweep results and errors. Disabled logger is used by default.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics. Disabled collector is used by default.
	MetricsCollector MetricsCollector
}

// Sweeper periodically deletes window records that expired longer than
// the configured max window retention ago.
// It never touches the blacklist or the whitelist
// and never blocks the request decision path.
type Sweeper struct {
	store     Store
	retention time.Duration
	enabled   bool
	logger    log.FieldLogger
	metrics   MetricsCollector
	now       func() time.Time
}

// NewSweeper creates a new Sweeper for the given store and configuration.
func NewSweeper(store Store, cfg *Config) *Sweeper {
	return NewSweeperWithOpts(store, cfg, SweeperOpts{})
}

// NewSweeperWithOpts is a more configurable version of NewSweeper.
func NewSweeperWithOpts(store Store, cfg *Config, opts SweeperOpts) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = NewDisabledMetrics()
	}
	return &Sweeper{
		store:     store,
		retention: cfg.MaxWindowRetention.Duration,
		enabled:   cfg.EvictionEnabled(),
		logger:    log.NewPrefixedLogger(logger, "sweeper: "),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Enabled reports whether eviction is configured.
// A disabled sweeper keeps all records forever.
func (s *Sweeper) Enabled() bool {
	return s.enabled
}

// Period returns how often the sweeper should run, which is once per retention span.
func (s *Sweeper) Period() time.Duration {
	return s.retention
}

// Sweep deletes every record whose window has been expired for longer than the retention.
// Records of currently blocked or counting keys always survive it.
// Sweeping is idempotent, an immediate second pass deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	deleted, err := s.store.DeleteExpiredRecords(ctx, s.now().Add(-s.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.metrics.AddEvictedRecords(deleted)
		s.logger.Debug("expired records deleted", log.Int64("count", deleted))
	}
	return nil
}

// Run sweeps the store once per period until the context is canceled.
// A failed sweep is logged and does not stop the loop, the next tick tries again.
// It returns nil right away when eviction is not configured.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	ticker := time.NewTicker(s.retention)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", log.Error(err))
			}
		}
	}
}
