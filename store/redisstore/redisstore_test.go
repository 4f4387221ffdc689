/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package redisstore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/store/storetest"
)

// The tests need a running Redis and are skipped unless FLOODGATE_REDIS_ADDR
// is set (e.g. FLOODGATE_REDIS_ADDR=localhost:6379). They use database 15
// and flush it.
func newTestClient(t *testing.T) *redis.Client {
	addr := strings.TrimSpace(os.Getenv("FLOODGATE_REDIS_ADDR"))
	if addr == "" {
		t.Skip("FLOODGATE_REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestStoreContract(t *testing.T) {
	storetest.RunSuiteWithOpts(t, func(t *testing.T) floodgate.Store {
		return New(newTestClient(t))
	}, storetest.Opts{SkipDeleteExpiredRecords: true})
}

func TestRecordExpiresNatively(t *testing.T) {
	ctx := context.Background()
	st := NewWithOpts(newTestClient(t), Opts{RecordRetention: time.Second})

	require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{
		Key: "short-lived", RequestCount: 1, WindowExpiry: time.Now().UTC(),
	}))
	rec, err := st.GetRecord(ctx, "short-lived")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Eventually(t, func() bool {
		rec, err := st.GetRecord(ctx, "short-lived")
		return err == nil && rec == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestKeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	first := NewWithOpts(client, Opts{KeyPrefix: "gate-a"})
	second := NewWithOpts(client, Opts{KeyPrefix: "gate-b"})

	require.NoError(t, first.SaveRecord(ctx, &floodgate.Record{
		Key: "alice", RequestCount: 1, WindowExpiry: time.Now().UTC().Add(time.Minute),
	}))
	require.NoError(t, first.Blacklist(ctx, "mallory", false))

	rec, err := second.GetRecord(ctx, "alice")
	require.NoError(t, err)
	require.Nil(t, rec)
	blacklisted, err := second.IsBlacklisted(ctx, "mallory")
	require.NoError(t, err)
	require.False(t, blacklisted)
}

func TestCorruptedRecordIsNotTransient(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	st := New(client)

	require.NoError(t, client.Set(ctx, "floodgate:record:broken", "{not json", 0).Err())
	_, err := st.GetRecord(ctx, "broken")
	require.Error(t, err)
	require.NotErrorIs(t, err, floodgate.ErrStoreUnavailable)
}
