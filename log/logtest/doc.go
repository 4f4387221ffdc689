/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package logtest provides implementation of log.FieldLogger that allows writing tests for logging functionality.
// It was inspired by httptest (https://golang.org/pkg/net/http/httptest) from Go standard library.
package logtest
