/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package storetest provides a reusable test suite verifying that a backend
// satisfies the floodgate.Store contract. Every store implementation in this
// repository runs it, custom backends are encouraged to do the same.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
)

// Opts represents options for the suite.
type Opts struct {
	// SkipDeleteExpiredRecords disables the eviction subtests for backends
	// that expire records natively (TTL) and implement DeleteExpiredRecords as a no-op.
	SkipDeleteExpiredRecords bool
}

// RunSuite runs the floodgate.Store contract tests against stores created by newStore.
// Each subtest gets a fresh store.
func RunSuite(t *testing.T, newStore func(t *testing.T) floodgate.Store) {
	RunSuiteWithOpts(t, newStore, Opts{})
}

// RunSuiteWithOpts is a more configurable version of RunSuite.
func RunSuiteWithOpts(t *testing.T, newStore func(t *testing.T) floodgate.Store, opts Opts) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("get absent record", func(t *testing.T) {
		st := newStore(t)
		rec, err := st.GetRecord(ctx, "nobody")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("save and get record", func(t *testing.T) {
		st := newStore(t)
		want := &floodgate.Record{Key: "alice", RequestCount: 3, WindowExpiry: base.Add(time.Minute), BlockCount: 1}
		require.NoError(t, st.SaveRecord(ctx, want))
		got, err := st.GetRecord(ctx, "alice")
		require.NoError(t, err)
		requireRecordEqual(t, want, got)
	})

	t.Run("save overwrites record", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "alice", RequestCount: 1, WindowExpiry: base.Add(time.Minute)}))
		want := &floodgate.Record{Key: "alice", RequestCount: 7, WindowExpiry: base.Add(2 * time.Minute), BlockCount: 2}
		require.NoError(t, st.SaveRecord(ctx, want))
		got, err := st.GetRecord(ctx, "alice")
		require.NoError(t, err)
		requireRecordEqual(t, want, got)
	})

	t.Run("negative request count survives round trip", func(t *testing.T) {
		st := newStore(t)
		want := &floodgate.Record{Key: "alice", RequestCount: -4, WindowExpiry: base.Add(time.Minute)}
		require.NoError(t, st.SaveRecord(ctx, want))
		got, err := st.GetRecord(ctx, "alice")
		require.NoError(t, err)
		requireRecordEqual(t, want, got)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "alice", RequestCount: 1, WindowExpiry: base.Add(time.Minute)}))
		got, err := st.GetRecord(ctx, "alice")
		require.NoError(t, err)
		got.RequestCount = 100

		again, err := st.GetRecord(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, 1, again.RequestCount)
	})

	t.Run("blacklist", func(t *testing.T) {
		st := newStore(t)

		blacklisted, err := st.IsBlacklisted(ctx, "mallory")
		require.NoError(t, err)
		require.False(t, blacklisted)

		require.NoError(t, st.Blacklist(ctx, "mallory", false))
		blacklisted, err = st.IsBlacklisted(ctx, "mallory")
		require.NoError(t, err)
		require.True(t, blacklisted)

		// Idempotent.
		require.NoError(t, st.Blacklist(ctx, "mallory", false))
		blacklisted, err = st.IsBlacklisted(ctx, "mallory")
		require.NoError(t, err)
		require.True(t, blacklisted)

		require.NoError(t, st.RemoveBlacklist(ctx, "mallory"))
		blacklisted, err = st.IsBlacklisted(ctx, "mallory")
		require.NoError(t, err)
		require.False(t, blacklisted)

		// Removing a key that is not listed is not an error.
		require.NoError(t, st.RemoveBlacklist(ctx, "mallory"))
	})

	t.Run("whitelist", func(t *testing.T) {
		st := newStore(t)

		whitelisted, err := st.IsWhitelisted(ctx, "alice")
		require.NoError(t, err)
		require.False(t, whitelisted)

		require.NoError(t, st.Whitelist(ctx, "alice", false))
		whitelisted, err = st.IsWhitelisted(ctx, "alice")
		require.NoError(t, err)
		require.True(t, whitelisted)

		require.NoError(t, st.RemoveWhitelist(ctx, "alice"))
		whitelisted, err = st.IsWhitelisted(ctx, "alice")
		require.NoError(t, err)
		require.False(t, whitelisted)
	})

	t.Run("lists are mutually exclusive", func(t *testing.T) {
		st := newStore(t)

		require.NoError(t, st.Whitelist(ctx, "bob", false))
		require.NoError(t, st.Blacklist(ctx, "bob", false))
		whitelisted, err := st.IsWhitelisted(ctx, "bob")
		require.NoError(t, err)
		require.False(t, whitelisted)
		blacklisted, err := st.IsBlacklisted(ctx, "bob")
		require.NoError(t, err)
		require.True(t, blacklisted)

		require.NoError(t, st.Whitelist(ctx, "bob", false))
		blacklisted, err = st.IsBlacklisted(ctx, "bob")
		require.NoError(t, err)
		require.False(t, blacklisted)
		whitelisted, err = st.IsWhitelisted(ctx, "bob")
		require.NoError(t, err)
		require.True(t, whitelisted)
	})

	t.Run("blacklist deletes record on demand", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "kept", RequestCount: 1, WindowExpiry: base.Add(time.Minute)}))
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "purged", RequestCount: 1, WindowExpiry: base.Add(time.Minute)}))

		require.NoError(t, st.Blacklist(ctx, "kept", false))
		require.NoError(t, st.Blacklist(ctx, "purged", true))

		rec, err := st.GetRecord(ctx, "kept")
		require.NoError(t, err)
		require.NotNil(t, rec)
		rec, err = st.GetRecord(ctx, "purged")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("whitelist deletes record on demand", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "purged", RequestCount: 1, WindowExpiry: base.Add(time.Minute)}))
		require.NoError(t, st.Whitelist(ctx, "purged", true))
		rec, err := st.GetRecord(ctx, "purged")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("list members", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Blacklist(ctx, "mallory", false))
		require.NoError(t, st.Blacklist(ctx, "eve", false))
		require.NoError(t, st.Whitelist(ctx, "alice", false))

		blacklisted, err := st.ListBlacklisted(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"eve", "mallory"}, blacklisted)

		whitelisted, err := st.ListWhitelisted(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"alice"}, whitelisted)
	})

	t.Run("empty lists", func(t *testing.T) {
		st := newStore(t)
		blacklisted, err := st.ListBlacklisted(ctx)
		require.NoError(t, err)
		require.Empty(t, blacklisted)
		whitelisted, err := st.ListWhitelisted(ctx)
		require.NoError(t, err)
		require.Empty(t, whitelisted)
	})

	if opts.SkipDeleteExpiredRecords {
		return
	}

	t.Run("delete expired records", func(t *testing.T) {
		st := newStore(t)
		cutoff := base
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "ancient", RequestCount: 1, WindowExpiry: cutoff.Add(-time.Hour)}))
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "boundary", RequestCount: 1, WindowExpiry: cutoff}))
		require.NoError(t, st.SaveRecord(ctx, &floodgate.Record{Key: "fresh", RequestCount: 1, WindowExpiry: cutoff.Add(time.Hour)}))

		deleted, err := st.DeleteExpiredRecords(ctx, cutoff)
		require.NoError(t, err)
		require.EqualValues(t, 2, deleted)

		rec, err := st.GetRecord(ctx, "ancient")
		require.NoError(t, err)
		require.Nil(t, rec)
		rec, err = st.GetRecord(ctx, "boundary")
		require.NoError(t, err)
		require.Nil(t, rec)
		rec, err = st.GetRecord(ctx, "fresh")
		require.NoError(t, err)
		require.NotNil(t, rec)

		// Idempotent: an immediate second pass deletes nothing.
		deleted, err = st.DeleteExpiredRecords(ctx, cutoff)
		require.NoError(t, err)
		require.EqualValues(t, 0, deleted)
	})

	t.Run("delete expired keeps lists", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Blacklist(ctx, "mallory", false))
		require.NoError(t, st.Whitelist(ctx, "alice", false))

		_, err := st.DeleteExpiredRecords(ctx, base.Add(time.Hour))
		require.NoError(t, err)

		blacklisted, err := st.IsBlacklisted(ctx, "mallory")
		require.NoError(t, err)
		require.True(t, blacklisted)
		whitelisted, err := st.IsWhitelisted(ctx, "alice")
		require.NoError(t, err)
		require.True(t, whitelisted)
	})
}

func requireRecordEqual(t *testing.T, want, got *floodgate.Record) {
	t.Helper()
	require.NotNil(t, got)
	require.Equal(t, want.Key, got.Key)
	require.Equal(t, want.RequestCount, got.RequestCount)
	require.Equal(t, want.BlockCount, got.BlockCount)
	require.True(t, want.WindowExpiry.Equal(got.WindowExpiry),
		"window expiry mismatch: want %s, got %s", want.WindowExpiry, got.WindowExpiry)
}
