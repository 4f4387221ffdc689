/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable indicates a transient store failure.
// Operations failing with it may be retried.
var ErrStoreUnavailable = errors.New("store is unavailable")

// Store is the persistence contract of the admission control engine.
// It holds per-key window records and two membership lists (blacklist, whitelist).
//
// Every operation may fail with an error matching ErrStoreUnavailable when the
// backend is temporarily unreachable. Implementations must not corrupt state on
// partial failure: a failed SaveRecord either fully applies or leaves the record
// observably unchanged.
type Store interface {
	// GetRecord returns the record for the key, or nil without error when absent.
	GetRecord(ctx context.Context, key string) (*Record, error)

	// SaveRecord upserts the record. Last writer wins;
	// the write must be atomic with respect to a single key.
	SaveRecord(ctx context.Context, record *Record) error

	// IsBlacklisted reports whether the key is in the blacklist.
	IsBlacklisted(ctx context.Context, key string) (bool, error)

	// IsWhitelisted reports whether the key is in the whitelist.
	IsWhitelisted(ctx context.Context, key string) (bool, error)

	// Blacklist adds the key to the blacklist. Idempotent.
	// Any whitelist membership of the key is removed;
	// the key's record is deleted when deleteRecord is true.
	Blacklist(ctx context.Context, key string, deleteRecord bool) error

	// RemoveBlacklist removes the key from the blacklist. Idempotent.
	RemoveBlacklist(ctx context.Context, key string) error

	// Whitelist adds the key to the whitelist, symmetric to Blacklist.
	Whitelist(ctx context.Context, key string, deleteRecord bool) error

	// RemoveWhitelist removes the key from the whitelist. Idempotent.
	RemoveWhitelist(ctx context.Context, key string) error

	// ListBlacklisted returns all blacklisted keys.
	ListBlacklisted(ctx context.Context) ([]string, error)

	// ListWhitelisted returns all whitelisted keys.
	ListWhitelisted(ctx context.Context) ([]string, error)

	// DeleteExpiredRecords removes records whose WindowExpiry is at or before
	// olderThan and returns how many were removed. Blacklist and whitelist are
	// never touched. Backends evicting stale records natively (e.g. by TTL)
	// may implement it as a no-op.
	DeleteExpiredRecords(ctx context.Context, olderThan time.Time) (int64, error)
}

// StoreUnavailableError is a transient backend failure annotated with the
// operation and key it interrupted. It matches ErrStoreUnavailable in errors.Is.
type StoreUnavailableError struct {
	Op  string
	Key string
	Err error
}

// NewStoreUnavailableError creates a new StoreUnavailableError.
func NewStoreUnavailableError(op, key string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Key: key, Err: err}
}

// Error implements the error interface.
func (e *StoreUnavailableError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store is unavailable: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store is unavailable: %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether the target is ErrStoreUnavailable.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
