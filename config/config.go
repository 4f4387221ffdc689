/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package config provides loading of configuration parameters from files,
// readers and environment variables, and saving them back to files.
// Configuration objects implement the Config interface and are filled by Loader.
package config

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}
