/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package redisstore provides a Redis-backed implementation of the floodgate.Store
// interface for deployments where several nodes must share admission state.
// Window records are stored as JSON values with a TTL, list memberships as sets.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floodgate/floodgate"
)

const (
	defaultKeyPrefix       = "floodgate"
	defaultRecordRetention = 24 * time.Hour
)

// Opts represents options for Store.
type Opts struct {
	// KeyPrefix is prepended to every Redis key the store touches.
	// Defaults to "floodgate".
	KeyPrefix string

	// RecordRetention is how long a record outlives its window expiry before
	// Redis drops it. It must cover the idle time after which carrying unused
	// quota over to the next window no longer matters. Defaults to 24 hours.
	RecordRetention time.Duration
}

// Store is a Redis implementation of the floodgate.Store interface.
//
// Records expire natively: each one is saved with a TTL of its remaining
// window time plus the retention, so DeleteExpiredRecords is a no-op.
// The client stays owned by the caller and is not closed by the store.
type Store struct {
	client          redis.UniversalClient
	keyPrefix       string
	recordRetention time.Duration

	blacklistKey string
	whitelistKey string
}

var _ floodgate.Store = (*Store)(nil)

// New creates a new Store on top of the given client with default options.
func New(client redis.UniversalClient) *Store {
	return NewWithOpts(client, Opts{})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(client redis.UniversalClient, opts Opts) *Store {
	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	recordRetention := opts.RecordRetention
	if recordRetention <= 0 {
		recordRetention = defaultRecordRetention
	}
	return &Store{
		client:          client,
		keyPrefix:       keyPrefix,
		recordRetention: recordRetention,
		blacklistKey:    keyPrefix + ":blacklist",
		whitelistKey:    keyPrefix + ":whitelist",
	}
}

// GetRecord returns the stored record or nil, nil when the key has none.
func (s *Store) GetRecord(ctx context.Context, key string) (*floodgate.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, floodgate.NewStoreUnavailableError("getRecord", key, err)
	}
	var rec floodgate.Record
	if err = json.Unmarshal(data, &rec); err != nil {
		// Not transient, retrying cannot help.
		return nil, fmt.Errorf("unmarshal record %q: %w", key, err)
	}
	return &rec, nil
}

// SaveRecord upserts the record with a TTL covering the window plus the retention.
func (s *Store) SaveRecord(ctx context.Context, rec *floodgate.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %q: %w", rec.Key, err)
	}
	if err = s.client.Set(ctx, s.recordKey(rec.Key), data, s.recordTTL(rec.WindowExpiry)).Err(); err != nil {
		return floodgate.NewStoreUnavailableError("saveRecord", rec.Key, err)
	}
	return nil
}

// IsBlacklisted reports whether the key is blacklisted.
func (s *Store) IsBlacklisted(ctx context.Context, key string) (bool, error) {
	listed, err := s.client.SIsMember(ctx, s.blacklistKey, key).Result()
	if err != nil {
		return false, floodgate.NewStoreUnavailableError("isBlacklisted", key, err)
	}
	return listed, nil
}

// IsWhitelisted reports whether the key is whitelisted.
func (s *Store) IsWhitelisted(ctx context.Context, key string) (bool, error) {
	listed, err := s.client.SIsMember(ctx, s.whitelistKey, key).Result()
	if err != nil {
		return false, floodgate.NewStoreUnavailableError("isWhitelisted", key, err)
	}
	return listed, nil
}

// Blacklist adds the key to the blacklist removing it from the whitelist.
// The window record is deleted in the same transaction when deleteRecord is true.
func (s *Store) Blacklist(ctx context.Context, key string, deleteRecord bool) error {
	if err := s.setListed(ctx, s.blacklistKey, s.whitelistKey, key, deleteRecord); err != nil {
		return floodgate.NewStoreUnavailableError("blacklist", key, err)
	}
	return nil
}

// RemoveBlacklist removes the key from the blacklist.
func (s *Store) RemoveBlacklist(ctx context.Context, key string) error {
	if err := s.client.SRem(ctx, s.blacklistKey, key).Err(); err != nil {
		return floodgate.NewStoreUnavailableError("removeBlacklist", key, err)
	}
	return nil
}

// Whitelist adds the key to the whitelist removing it from the blacklist.
// The window record is deleted in the same transaction when deleteRecord is true.
func (s *Store) Whitelist(ctx context.Context, key string, deleteRecord bool) error {
	if err := s.setListed(ctx, s.whitelistKey, s.blacklistKey, key, deleteRecord); err != nil {
		return floodgate.NewStoreUnavailableError("whitelist", key, err)
	}
	return nil
}

// RemoveWhitelist removes the key from the whitelist.
func (s *Store) RemoveWhitelist(ctx context.Context, key string) error {
	if err := s.client.SRem(ctx, s.whitelistKey, key).Err(); err != nil {
		return floodgate.NewStoreUnavailableError("removeWhitelist", key, err)
	}
	return nil
}

// ListBlacklisted returns all blacklisted keys in lexicographic order.
func (s *Store) ListBlacklisted(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "listBlacklisted", s.blacklistKey)
}

// ListWhitelisted returns all whitelisted keys in lexicographic order.
func (s *Store) ListWhitelisted(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "listWhitelisted", s.whitelistKey)
}

// DeleteExpiredRecords is a no-op: records carry a TTL and Redis expires them natively.
func (s *Store) DeleteExpiredRecords(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *Store) setListed(ctx context.Context, addTo, removeFrom, key string, deleteRecord bool) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, addTo, key)
		pipe.SRem(ctx, removeFrom, key)
		if deleteRecord {
			pipe.Del(ctx, s.recordKey(key))
		}
		return nil
	})
	return err
}

func (s *Store) listKeys(ctx context.Context, op, setKey string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, floodgate.NewStoreUnavailableError(op, "", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) recordKey(key string) string {
	return s.keyPrefix + ":record:" + key
}

func (s *Store) recordTTL(windowExpiry time.Time) time.Duration {
	ttl := time.Until(windowExpiry) + s.recordRetention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
