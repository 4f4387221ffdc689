/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package floodgate provides per-client admission control with fixed counting
// windows, escalating block penalties, and persistent black/white lists.
//
// Every request carries an opaque string key (a client IP, an account id, an
// API token). The Limiter counts requests per key within a window of
// configurable duration and admits them until the allowance is spent. Keys
// that keep crossing the limit can be penalized with growing block extensions
// and ultimately blacklisted. Whitelisted keys and keys matching the bypass
// rule are admitted without counting.
//
// Window records and list memberships live in a pluggable Store
// (see the store subpackages for in-memory, SQLite and Redis backends).
// Transient store unavailability is retried with a configurable backoff,
// and reads fail open so a store outage never rejects traffic by itself.
//
// Key features:
//   - Fixed-window counting with optional carry-over of unused quota
//   - Absolute or sliding (relative) block expiry
//   - Repeat-offender escalation up to permanent blacklisting
//   - Manual blacklist and whitelist management
//   - Background eviction of long-expired records
//   - Prometheus metrics for decisions, store retries and evictions
package floodgate
