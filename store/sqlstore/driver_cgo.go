/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

//go:build cgo

package sqlstore

// The libsql driver requires cgo; without it the package still compiles but
// Open fails at runtime with an unknown driver error.
import _ "github.com/tursodatabase/go-libsql"
