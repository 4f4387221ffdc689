/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import "time"

// Record holds the admission-control state of a single client key.
// A record exists in the store only for keys that have sent at least one request
// since their last window reset or eviction.
type Record struct {
	// Key is the opaque client key the record belongs to. Immutable once created.
	Key string `json:"key"`

	// RequestCount is the number of requests counted against the current window.
	// Normally in [0, amount+1]; may be negative right after a window reset
	// when accumulation carries unused quota over as credit.
	RequestCount int `json:"requestCount"`

	// WindowExpiry is the absolute time at which the current counting window
	// (or active block) ends.
	WindowExpiry time.Time `json:"windowExpiry"`

	// BlockCount is the number of times the key has crossed the per-window limit
	// since the last full reset or escalation-reset.
	BlockCount int `json:"blockCount"`
}

// IsExpired reports whether the record's window ended at or before the given time.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.WindowExpiry.After(now)
}
