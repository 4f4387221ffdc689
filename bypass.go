/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"fmt"

	"github.com/vasayxtx/go-glob"
)

// ErrBypassRuleAlreadySet is returned by Limiter.SetBypassRule
// when a rule has been set before.
var ErrBypassRuleAlreadySet = fmt.Errorf("%w: bypass rule is already set", ErrInvalidConfiguration)

// BypassRule reports whether the key should be admitted without counting.
// It must be safe for concurrent use.
type BypassRule func(key string) bool

// GlobBypassRule makes a BypassRule matching keys against glob patterns
// ("*" matches any, possibly empty, sequence of characters).
// Patterns are compiled once, matching is allocation-free.
func GlobBypassRule(patterns ...string) BypassRule {
	matchers := make([]func(s string) bool, 0, len(patterns))
	for _, p := range patterns {
		matchers = append(matchers, glob.Compile(p))
	}
	return func(key string) bool {
		for _, match := range matchers {
			if match(key) {
				return true
			}
		}
		return false
	}
}

// KeySetBypassRule makes a BypassRule admitting exactly the listed keys.
func KeySetBypassRule(keys ...string) BypassRule {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(key string) bool {
		_, ok := set[key]
		return ok
	}
}
