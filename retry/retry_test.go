/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetry(t *testing.T) {
	errTransient := errors.New("transient error")
	errPermanent := errors.New("permanent error")

	t.Run("succeeds after transient errors", func(t *testing.T) {
		var attempts int
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 10), nil, nil,
			func(ctx context.Context) error {
				attempts++
				if attempts < 3 {
					return errTransient
				}
				return nil
			})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var attempts int
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 2), nil, nil,
			func(ctx context.Context) error {
				attempts++
				return errTransient
			})
		require.ErrorIs(t, err, errTransient)
		require.Equal(t, 3, attempts, "1 call + 2 retries")
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		isRetryable := func(err error) bool { return errors.Is(err, errTransient) }
		var attempts int
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 10), isRetryable, nil,
			func(ctx context.Context) error {
				attempts++
				return errPermanent
			})
		require.ErrorIs(t, err, errPermanent)
		require.Equal(t, 1, attempts)
	})

	t.Run("notifies on each retry", func(t *testing.T) {
		var notifications int
		notify := func(err error, delay time.Duration) {
			notifications++
			require.ErrorIs(t, err, errTransient)
		}
		err := DoWithRetry(context.Background(), NewConstantBackoffPolicy(time.Millisecond, 3), nil, notify,
			func(ctx context.Context) error {
				return errTransient
			})
		require.ErrorIs(t, err, errTransient)
		require.Equal(t, 3, notifications)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var attempts int
		err := DoWithRetry(ctx, NewConstantBackoffPolicy(time.Minute, 10), nil, nil,
			func(ctx context.Context) error {
				attempts++
				cancel()
				return errTransient
			})
		require.Error(t, err)
		require.Equal(t, 1, attempts)
	})
}

func TestLinearBackoffPolicy(t *testing.T) {
	b := NewLinearBackoffPolicy(time.Second, 0).NewBackOff()
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
	require.Equal(t, 3*time.Second, b.NextBackOff())
	b.Reset()
	require.Equal(t, time.Second, b.NextBackOff())

	b = NewLinearBackoffPolicy(time.Second, 2).NewBackOff()
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
	require.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestConstantBackoffPolicy(t *testing.T) {
	b := NewConstantBackoffPolicy(time.Second, 2).NewBackOff()
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, backoff.Stop, b.NextBackOff())
}
