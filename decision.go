/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"math"
	"time"
)

// Outcome is the verdict of the admission control engine for a single request.
type Outcome int

// Possible outcomes.
const (
	// OutcomeAdmit means the request may be served.
	OutcomeAdmit Outcome = iota

	// OutcomeThrottled means the request is temporarily rejected;
	// Decision.RetryAfter tells how long the client should wait.
	OutcomeThrottled

	// OutcomeBlacklisted means the key is permanently rejected
	// until an operator explicitly clears it.
	OutcomeBlacklisted
)

// String returns a string representation of the outcome.
// Implements fmt.Stringer interface.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdmit:
		return "admit"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeBlacklisted:
		return "blacklisted"
	}
	return "unknown"
}

// Decision is the result of a single admission check.
type Decision struct {
	Outcome Outcome

	// RetryAfter is how long the client should wait before the next attempt.
	// Non-zero only for OutcomeThrottled; never negative.
	RetryAfter time.Duration
}

// Admitted reports whether the request may be served.
func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeAdmit
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds,
// suitable for the Retry-After HTTP header.
func (d Decision) RetryAfterSeconds() int {
	return int(math.Ceil(d.RetryAfter.Seconds()))
}
