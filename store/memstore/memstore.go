/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package memstore provides a volatile in-memory implementation of the floodgate.Store
// interface. It is the reference backend: fast, dependency-free, and suitable for
// single-process deployments and tests. All data is lost on restart.
package memstore

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/floodgate/floodgate"
)

const shardsCount = 16

// Opts represents options for Store.
type Opts struct {
	// MaxEntries bounds the number of window records kept in memory.
	// The oldest (least recently used) records are evicted when the bound is reached.
	// The bound is approximate: it is applied per stripe, not globally.
	// Zero means no bound. Blacklist and whitelist sizes are never bounded.
	MaxEntries int
}

// Store is an in-memory implementation of the floodgate.Store interface.
// Window records are kept in striped maps to reduce lock contention,
// list memberships in plain sets. All operations are non-blocking
// and never return an error.
type Store struct {
	shards             [shardsCount]recordShard
	maxEntriesPerShard int

	listsMu   sync.RWMutex
	blacklist map[string]struct{}
	whitelist map[string]struct{}
}

type recordShard struct {
	mu      sync.RWMutex
	records map[string]*list.Element
	order   *list.List // front is the most recently used record
}

type recordEntry struct {
	key string
	rec floodgate.Record
}

var _ floodgate.Store = (*Store)(nil)

// New creates a new unbounded in-memory store.
func New() *Store {
	return NewWithOpts(Opts{})
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(opts Opts) *Store {
	s := &Store{
		blacklist: make(map[string]struct{}),
		whitelist: make(map[string]struct{}),
	}
	if opts.MaxEntries > 0 {
		s.maxEntriesPerShard = (opts.MaxEntries + shardsCount - 1) / shardsCount
	}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*list.Element)
		s.shards[i].order = list.New()
	}
	return s
}

// GetRecord returns a copy of the stored record or nil, nil when the key has none.
func (s *Store) GetRecord(_ context.Context, key string) (*floodgate.Record, error) {
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	elem, ok := shard.records[key]
	if !ok {
		return nil, nil
	}
	shard.order.MoveToFront(elem)
	rec := elem.Value.(*recordEntry).rec
	return &rec, nil
}

// SaveRecord stores a copy of the record, overwriting any previous one.
func (s *Store) SaveRecord(_ context.Context, rec *floodgate.Record) error {
	shard := s.shard(rec.Key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if elem, ok := shard.records[rec.Key]; ok {
		shard.order.MoveToFront(elem)
		elem.Value.(*recordEntry).rec = *rec
		return nil
	}
	shard.records[rec.Key] = shard.order.PushFront(&recordEntry{key: rec.Key, rec: *rec})
	if s.maxEntriesPerShard > 0 && shard.order.Len() > s.maxEntriesPerShard {
		oldest := shard.order.Back()
		shard.order.Remove(oldest)
		delete(shard.records, oldest.Value.(*recordEntry).key)
	}
	return nil
}

// IsBlacklisted reports whether the key is blacklisted.
func (s *Store) IsBlacklisted(_ context.Context, key string) (bool, error) {
	s.listsMu.RLock()
	defer s.listsMu.RUnlock()
	_, ok := s.blacklist[key]
	return ok, nil
}

// IsWhitelisted reports whether the key is whitelisted.
func (s *Store) IsWhitelisted(_ context.Context, key string) (bool, error) {
	s.listsMu.RLock()
	defer s.listsMu.RUnlock()
	_, ok := s.whitelist[key]
	return ok, nil
}

// Blacklist adds the key to the blacklist removing it from the whitelist.
// The window record is deleted when deleteRecord is true.
func (s *Store) Blacklist(_ context.Context, key string, deleteRecord bool) error {
	s.listsMu.Lock()
	s.blacklist[key] = struct{}{}
	delete(s.whitelist, key)
	s.listsMu.Unlock()
	if deleteRecord {
		s.deleteRecord(key)
	}
	return nil
}

// RemoveBlacklist removes the key from the blacklist.
func (s *Store) RemoveBlacklist(_ context.Context, key string) error {
	s.listsMu.Lock()
	defer s.listsMu.Unlock()
	delete(s.blacklist, key)
	return nil
}

// Whitelist adds the key to the whitelist removing it from the blacklist.
// The window record is deleted when deleteRecord is true.
func (s *Store) Whitelist(_ context.Context, key string, deleteRecord bool) error {
	s.listsMu.Lock()
	s.whitelist[key] = struct{}{}
	delete(s.blacklist, key)
	s.listsMu.Unlock()
	if deleteRecord {
		s.deleteRecord(key)
	}
	return nil
}

// RemoveWhitelist removes the key from the whitelist.
func (s *Store) RemoveWhitelist(_ context.Context, key string) error {
	s.listsMu.Lock()
	defer s.listsMu.Unlock()
	delete(s.whitelist, key)
	return nil
}

// ListBlacklisted returns all blacklisted keys in lexicographic order.
func (s *Store) ListBlacklisted(_ context.Context) ([]string, error) {
	s.listsMu.RLock()
	defer s.listsMu.RUnlock()
	return sortedKeys(s.blacklist), nil
}

// ListWhitelisted returns all whitelisted keys in lexicographic order.
func (s *Store) ListWhitelisted(_ context.Context) ([]string, error) {
	s.listsMu.RLock()
	defer s.listsMu.RUnlock()
	return sortedKeys(s.whitelist), nil
}

// DeleteExpiredRecords deletes all records with the window expired at olderThan or earlier
// and returns the number of deleted records.
func (s *Store) DeleteExpiredRecords(_ context.Context, olderThan time.Time) (int64, error) {
	var deleted int64
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, elem := range shard.records {
			if !elem.Value.(*recordEntry).rec.WindowExpiry.After(olderThan) {
				shard.order.Remove(elem)
				delete(shard.records, key)
				deleted++
			}
		}
		shard.mu.Unlock()
	}
	return deleted, nil
}

// RecordsCount returns the current number of stored window records.
func (s *Store) RecordsCount() int {
	var n int
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		n += len(shard.records)
		shard.mu.RUnlock()
	}
	return n
}

func (s *Store) shard(key string) *recordShard {
	// Inlined FNV-1a, no allocations on the hot path.
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return &s.shards[h%shardsCount]
}

func (s *Store) deleteRecord(key string) {
	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if elem, ok := shard.records[key]; ok {
		shard.order.Remove(elem)
		delete(shard.records, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
