/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package testutil

import (
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// RequireNoErrorInChannel asserts that there is no error in buffered channel.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	var err error
	select {
	case err = <-c:
	default:
	}
	require.NoError(t, err, msgAndArgs...)
}
