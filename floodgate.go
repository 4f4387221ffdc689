/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/retry"
)

// ErrAlreadyBlacklisted is returned by Limiter.AddToBlacklist when the key is blacklisted already.
var ErrAlreadyBlacklisted = errors.New("key is already blacklisted")

// Store operation names used in logs and metrics.
const (
	opGetRecord     = "getRecord"
	opSaveRecord    = "saveRecord"
	opIsBlacklisted = "isBlacklisted"
	opIsWhitelisted = "isWhitelisted"
	opBlacklist     = "blacklist"
)

// LimiterOpts represents options for Limiter.
type LimiterOpts struct {
	// Logger is used for logging errors and retry attempts. Disabled logger is used by default.
	Logger log.FieldLogger

	// MetricsCollector is a collector of metrics. Disabled collector is used by default.
	MetricsCollector MetricsCollector
}

// Limiter makes per-key admission decisions backed by a Store.
//
// Operations on the same key are serialized, different keys never contend.
// Store writes are retried according to the configured backoff strategy.
// Store reads that keep failing make the limiter fail open: the request
// is treated as the first one in a fresh window.
type Limiter struct {
	store       Store
	cfg         Config
	logger      log.FieldLogger
	metrics     MetricsCollector
	retryPolicy retry.Policy
	keyLocks    *keyLock

	bypassMu   sync.RWMutex
	bypassRule BypassRule

	now func() time.Time
}

// NewLimiter creates a new Limiter with the given store and configuration.
func NewLimiter(store Store, cfg *Config) (*Limiter, error) {
	return NewLimiterWithOpts(store, cfg, LimiterOpts{})
}

// NewLimiterWithOpts is a more configurable version of NewLimiter.
func NewLimiterWithOpts(store Store, cfg *Config, opts LimiterOpts) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfiguration)
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = NewDisabledMetrics()
	}
	return &Limiter{
		store:       store,
		cfg:         *cfg,
		logger:      logger,
		metrics:     metrics,
		retryPolicy: makeRetryPolicy(cfg),
		keyLocks:    newKeyLock(),
		now:         time.Now,
	}, nil
}

// Config returns a copy of the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// SetBypassRule installs the rule admitting matching keys without counting.
// Only one rule may be set during the limiter lifetime,
// ErrBypassRuleAlreadySet is returned on subsequent calls.
// Use OverrideBypassRule to replace the rule deliberately.
func (l *Limiter) SetBypassRule(rule BypassRule) error {
	l.bypassMu.Lock()
	defer l.bypassMu.Unlock()
	if l.bypassRule != nil {
		return ErrBypassRuleAlreadySet
	}
	l.bypassRule = rule
	return nil
}

// OverrideBypassRule replaces the current bypass rule. Passing nil removes it.
func (l *Limiter) OverrideBypassRule(rule BypassRule) {
	l.bypassMu.Lock()
	defer l.bypassMu.Unlock()
	l.bypassRule = rule
}

// Decide makes the admission decision for the key at the current moment.
func (l *Limiter) Decide(ctx context.Context, key string) Decision {
	return l.DecideAt(ctx, key, l.now())
}

// DecideAt makes the admission decision for the key as of the given moment.
func (l *Limiter) DecideAt(ctx context.Context, key string, now time.Time) Decision {
	d := l.decide(ctx, key, now)
	l.metrics.IncDecisions(d.Outcome)
	return d
}

func (l *Limiter) decide(ctx context.Context, key string, now time.Time) Decision {
	if l.bypassAllowed(key) {
		l.logger.Debug("admission check bypassed", log.String("key", key))
		return Decision{Outcome: OutcomeAdmit}
	}

	unlock := l.keyLocks.Lock(key)
	defer unlock()

	if l.isListed(ctx, opIsBlacklisted, key, l.store.IsBlacklisted) {
		return Decision{Outcome: OutcomeBlacklisted}
	}
	if l.isListed(ctx, opIsWhitelisted, key, l.store.IsWhitelisted) {
		return Decision{Outcome: OutcomeAdmit}
	}

	rec := l.loadRecord(ctx, key)
	if rec == nil || rec.IsExpired(now) {
		return l.startWindow(ctx, key, rec, now)
	}
	return l.countRequest(ctx, rec, now)
}

// startWindow begins a fresh counting window for the key.
// When request accumulation is enabled and an expired record is present,
// its unused quota is carried over by starting the count below one.
func (l *Limiter) startWindow(ctx context.Context, key string, expired *Record, now time.Time) Decision {
	carry := 0
	if expired != nil && l.cfg.AccumulateRequests {
		if unused := l.cfg.Amount - expired.RequestCount; unused > 0 {
			carry = unused
		}
	}
	rec := &Record{
		Key:          key,
		RequestCount: 1 - carry,
		WindowExpiry: now.Add(time.Duration(l.cfg.WindowDuration)),
	}
	l.saveRecord(ctx, rec)
	return Decision{Outcome: OutcomeAdmit}
}

// countRequest counts a request against the live window of the record.
func (l *Limiter) countRequest(ctx context.Context, rec *Record, now time.Time) Decision {
	rec.RequestCount++
	if rec.RequestCount <= l.cfg.Amount {
		l.saveRecord(ctx, rec)
		return Decision{Outcome: OutcomeAdmit}
	}

	firstExceeding := rec.RequestCount-1 == l.cfg.Amount
	if l.cfg.RelativeBlock || firstExceeding {
		rec.WindowExpiry = now.Add(time.Duration(l.cfg.WindowDuration))
	} else {
		// The count stays saturated so that re-blocking keeps extending nothing.
		rec.RequestCount = l.cfg.Amount + 1
	}
	rec.BlockCount++

	if l.cfg.HasBlockLimit() && rec.BlockCount > l.cfg.BlockLimit {
		if l.cfg.BlockExceedDuration.IsForever {
			return l.escalateToBlacklist(ctx, rec.Key)
		}
		if l.cfg.BlockExceedReset {
			rec.BlockCount = 0
		} else {
			rec.BlockCount = l.cfg.BlockLimit
		}
		rec.WindowExpiry = rec.WindowExpiry.Add(l.cfg.BlockExceedDuration.Duration)
	}

	l.saveRecord(ctx, rec)
	return Decision{Outcome: OutcomeThrottled, RetryAfter: retryAfter(rec.WindowExpiry, now)}
}

// escalateToBlacklist blacklists the key that exceeded the block limit
// with the punishment duration set to forever. The window record is deleted,
// membership checks alone reject all further requests.
func (l *Limiter) escalateToBlacklist(ctx context.Context, key string) Decision {
	err := l.doStoreOp(ctx, opBlacklist, key, func(ctx context.Context) error {
		return l.store.Blacklist(ctx, key, true)
	})
	if err != nil {
		l.logger.Error("failed to blacklist key exceeding block limit",
			log.String("key", key), log.Error(err))
	} else {
		l.logger.Warn("key blacklisted after exceeding block limit", log.String("key", key))
	}
	return Decision{Outcome: OutcomeBlacklisted}
}

// AddToBlacklist makes all further requests with the key rejected.
// ErrAlreadyBlacklisted is returned when the key is blacklisted already.
// The window record is deleted if deleting data on list changes is configured.
func (l *Limiter) AddToBlacklist(ctx context.Context, key string) error {
	unlock := l.keyLocks.Lock(key)
	defer unlock()
	blacklisted, err := l.store.IsBlacklisted(ctx, key)
	if err != nil {
		return err
	}
	if blacklisted {
		return ErrAlreadyBlacklisted
	}
	return l.store.Blacklist(ctx, key, l.cfg.DeleteDataOnListChange)
}

// RemoveFromBlacklist makes requests with the key counted again.
func (l *Limiter) RemoveFromBlacklist(ctx context.Context, key string) error {
	unlock := l.keyLocks.Lock(key)
	defer unlock()
	return l.store.RemoveBlacklist(ctx, key)
}

// AddToWhitelist makes all further requests with the key admitted without counting.
// The window record is deleted if deleting data on list changes is configured.
func (l *Limiter) AddToWhitelist(ctx context.Context, key string) error {
	unlock := l.keyLocks.Lock(key)
	defer unlock()
	return l.store.Whitelist(ctx, key, l.cfg.DeleteDataOnListChange)
}

// RemoveFromWhitelist makes requests with the key counted again.
func (l *Limiter) RemoveFromWhitelist(ctx context.Context, key string) error {
	unlock := l.keyLocks.Lock(key)
	defer unlock()
	return l.store.RemoveWhitelist(ctx, key)
}

// ListBlacklisted returns all blacklisted keys.
func (l *Limiter) ListBlacklisted(ctx context.Context) ([]string, error) {
	return l.store.ListBlacklisted(ctx)
}

// ListWhitelisted returns all whitelisted keys.
func (l *Limiter) ListWhitelisted(ctx context.Context) ([]string, error) {
	return l.store.ListWhitelisted(ctx)
}

func (l *Limiter) bypassAllowed(key string) bool {
	l.bypassMu.RLock()
	rule := l.bypassRule
	l.bypassMu.RUnlock()
	return rule != nil && rule(key)
}

// isListed checks the list membership failing open:
// if the store keeps being unavailable, the key is considered not listed.
func (l *Limiter) isListed(
	ctx context.Context, op string, key string, check func(ctx context.Context, key string) (bool, error),
) bool {
	var listed bool
	err := l.doStoreOp(ctx, op, key, func(ctx context.Context) error {
		var err error
		listed, err = check(ctx, key)
		return err
	})
	if err != nil {
		l.logger.Error("list membership check failed, considering key not listed",
			log.String("op", op), log.String("key", key), log.Error(err))
		return false
	}
	return listed
}

// loadRecord loads the window record failing open:
// if the store keeps being unavailable, the request starts a fresh window.
func (l *Limiter) loadRecord(ctx context.Context, key string) *Record {
	var rec *Record
	err := l.doStoreOp(ctx, opGetRecord, key, func(ctx context.Context) error {
		var err error
		rec, err = l.store.GetRecord(ctx, key)
		return err
	})
	if err != nil {
		l.logger.Error("failed to load record, starting a fresh window",
			log.String("key", key), log.Error(err))
		return nil
	}
	return rec
}

// saveRecord persists the record with retries. If the store keeps being unavailable,
// the error is logged and the already made decision stands.
func (l *Limiter) saveRecord(ctx context.Context, rec *Record) {
	err := l.doStoreOp(ctx, opSaveRecord, rec.Key, func(ctx context.Context) error {
		return l.store.SaveRecord(ctx, rec)
	})
	if err != nil {
		l.logger.Error("failed to save record, counting accuracy is degraded",
			log.String("key", rec.Key), log.Error(err))
	}
}

// doStoreOp performs the store operation retrying transient unavailability
// according to the configured backoff policy.
func (l *Limiter) doStoreOp(ctx context.Context, op string, key string, fn retry.RetryableFunc) error {
	notify := func(err error, delay time.Duration) {
		l.metrics.IncStoreRetries(op)
		l.logger.Warn("store operation failed, retrying",
			log.String("op", op), log.String("key", key),
			log.Duration("delay", delay), log.Error(err))
	}
	if err := retry.DoWithRetry(ctx, l.retryPolicy, isStoreUnavailable, notify, fn); err != nil {
		l.metrics.IncStoreErrors(op)
		return err
	}
	return nil
}

func isStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func retryAfter(expiry time.Time, now time.Time) time.Duration {
	if d := expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}

// makeRetryPolicy builds the store retry policy from the configuration.
// Zero retry count means a single attempt with no retries at all.
func makeRetryPolicy(cfg *Config) retry.Policy {
	if cfg.PersistRetryCount <= 0 {
		return retry.PolicyFunc(func() backoff.BackOff {
			return &backoff.StopBackOff{}
		})
	}
	interval := time.Duration(cfg.PersistRetryInterval)
	if cfg.BackoffStrategy == BackoffStrategyExponential {
		retryCount := uint64(cfg.PersistRetryCount)
		return retry.PolicyFunc(func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = interval
			eb.RandomizationFactor = 0
			eb.Multiplier = 2
			eb.MaxInterval = time.Duration(math.MaxInt64)
			eb.MaxElapsedTime = 0
			eb.Reset()
			return backoff.WithMaxRetries(eb, retryCount)
		})
	}
	return retry.NewLinearBackoffPolicy(interval, cfg.PersistRetryCount)
}
