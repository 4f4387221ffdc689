/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/floodgate/floodgate/log/logtest"
)

// sweepStoreStub records DeleteExpiredRecords calls, all other operations are no-ops.
type sweepStoreStub struct {
	deleteCalls   atomic.Int32
	lastOlderThan atomic.Value // time.Time
	deleted       int64
	err           error
}

func (s *sweepStoreStub) GetRecord(ctx context.Context, key string) (*Record, error) { return nil, nil }
func (s *sweepStoreStub) SaveRecord(ctx context.Context, rec *Record) error          { return nil }
func (s *sweepStoreStub) IsBlacklisted(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (s *sweepStoreStub) IsWhitelisted(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (s *sweepStoreStub) Blacklist(ctx context.Context, key string, deleteRecord bool) error {
	return nil
}
func (s *sweepStoreStub) RemoveBlacklist(ctx context.Context, key string) error { return nil }
func (s *sweepStoreStub) Whitelist(ctx context.Context, key string, deleteRecord bool) error {
	return nil
}
func (s *sweepStoreStub) RemoveWhitelist(ctx context.Context, key string) error   { return nil }
func (s *sweepStoreStub) ListBlacklisted(ctx context.Context) ([]string, error)   { return nil, nil }
func (s *sweepStoreStub) ListWhitelisted(ctx context.Context) ([]string, error)   { return nil, nil }
func (s *sweepStoreStub) DeleteExpiredRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	s.deleteCalls.Inc()
	s.lastOlderThan.Store(olderThan)
	return s.deleted, s.err
}

type metricsCollectorStub struct {
	evicted atomic.Int64
}

func (m *metricsCollectorStub) IncDecisions(outcome Outcome) {}
func (m *metricsCollectorStub) IncStoreRetries(op string)    {}
func (m *metricsCollectorStub) IncStoreErrors(op string)     {}
func (m *metricsCollectorStub) AddEvictedRecords(n int64)    { m.evicted.Add(n) }

func TestSweeperDisabled(t *testing.T) {
	st := &sweepStoreStub{}

	t.Run("zero retention", func(t *testing.T) {
		sweeper := NewSweeper(st, NewDefaultConfig())
		require.False(t, sweeper.Enabled())
		require.NoError(t, sweeper.Sweep(context.Background()))
		require.Zero(t, st.deleteCalls.Load())
		require.NoError(t, sweeper.Run(context.Background()))
	})

	t.Run("forever retention", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.MaxWindowRetention = Duration{IsForever: true}
		sweeper := NewSweeper(st, cfg)
		require.False(t, sweeper.Enabled())
	})
}

func TestSweeperSweep(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.MaxWindowRetention = Duration{Duration: 10 * time.Minute}

	t.Run("deletes records older than retention", func(t *testing.T) {
		st := &sweepStoreStub{deleted: 3}
		recorder := logtest.NewRecorder()
		metrics := &metricsCollectorStub{}
		sweeper := NewSweeperWithOpts(st, cfg, SweeperOpts{Logger: recorder, MetricsCollector: metrics})
		require.True(t, sweeper.Enabled())
		require.Equal(t, 10*time.Minute, sweeper.Period())

		t0 := time.Now()
		sweeper.now = func() time.Time { return t0 }

		require.NoError(t, sweeper.Sweep(context.Background()))
		require.EqualValues(t, 1, st.deleteCalls.Load())
		require.True(t, st.lastOlderThan.Load().(time.Time).Equal(t0.Add(-10*time.Minute)))
		require.EqualValues(t, 3, metrics.evicted.Load())

		entry, found := recorder.FindEntry("sweeper: expired records deleted")
		require.True(t, found)
		countField, found := entry.FindField("count")
		require.True(t, found)
		require.EqualValues(t, 3, countField.Int)
	})

	t.Run("nothing deleted, nothing reported", func(t *testing.T) {
		st := &sweepStoreStub{}
		recorder := logtest.NewRecorder()
		metrics := &metricsCollectorStub{}
		sweeper := NewSweeperWithOpts(st, cfg, SweeperOpts{Logger: recorder, MetricsCollector: metrics})

		require.NoError(t, sweeper.Sweep(context.Background()))
		require.Zero(t, metrics.evicted.Load())
		_, found := recorder.FindEntry("sweeper: expired records deleted")
		require.False(t, found)
	})

	t.Run("store error is returned", func(t *testing.T) {
		st := &sweepStoreStub{err: NewStoreUnavailableError("deleteExpiredRecords", "", context.DeadlineExceeded)}
		metrics := &metricsCollectorStub{}
		sweeper := NewSweeperWithOpts(st, cfg, SweeperOpts{MetricsCollector: metrics})

		err := sweeper.Sweep(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.Zero(t, metrics.evicted.Load())
	})
}

func TestSweeperRun(t *testing.T) {
	t.Run("sweeps periodically until canceled", func(t *testing.T) {
		st := &sweepStoreStub{deleted: 1}
		cfg := NewDefaultConfig()
		cfg.MaxWindowRetention = Duration{Duration: 10 * time.Millisecond}
		sweeper := NewSweeper(st, cfg)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- sweeper.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return st.deleteCalls.Load() >= 2
		}, 2*time.Second, time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not stop on context cancellation")
		}
	})

	t.Run("failed sweep does not stop the loop", func(t *testing.T) {
		st := &sweepStoreStub{err: NewStoreUnavailableError("deleteExpiredRecords", "", context.DeadlineExceeded)}
		recorder := logtest.NewRecorder()
		cfg := NewDefaultConfig()
		cfg.MaxWindowRetention = Duration{Duration: 10 * time.Millisecond}
		sweeper := NewSweeperWithOpts(st, cfg, SweeperOpts{Logger: recorder})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			_ = sweeper.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return st.deleteCalls.Load() >= 2
		}, 2*time.Second, time.Millisecond)

		_, found := recorder.FindEntry("sweeper: sweep failed")
		require.True(t, found)
	})
}
