/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
)

func TestRecordIsExpired(t *testing.T) {
	now := time.Now().UTC()
	rec := &floodgate.Record{Key: "k", WindowExpiry: now}

	require.True(t, rec.IsExpired(now), "a window ending exactly now is already over")
	require.True(t, rec.IsExpired(now.Add(time.Second)))
	require.False(t, rec.IsExpired(now.Add(-time.Nanosecond)))
}
