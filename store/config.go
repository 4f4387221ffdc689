/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/floodgate/floodgate/config"
)

const cfgDefaultKeyPrefix = "store"

const (
	cfgKeyBackend              = "backend"
	cfgKeyMemoryMaxEntries     = "memory.maxEntries"
	cfgKeyRedisAddr            = "redis.addr"
	cfgKeyRedisPassword        = "redis.password"
	cfgKeyRedisDB              = "redis.db"
	cfgKeyRedisKeyPrefix       = "redis.keyPrefix"
	cfgKeyRedisRecordRetention = "redis.recordRetention"
	cfgKeySQLDSN               = "sql.dsn"
	cfgKeySQLAuthToken         = "sql.authToken"
)

// DefaultRedisRecordRetention is how long Redis keeps a record after its window expired.
const DefaultRedisRecordRetention = 24 * time.Hour

// Backend defines possible values for the store backend.
type Backend string

// Store backends.
const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendSQL    Backend = "sql"
)

// MemoryConfig is a configuration for the in-memory backend.
type MemoryConfig struct {
	// MaxEntries bounds the number of records kept in memory, zero means no bound.
	MaxEntries int `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
}

// RedisConfig is a configuration for the Redis backend.
type RedisConfig struct {
	Addr            string              `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password        string              `mapstructure:"password" yaml:"password" json:"password"`
	DB              int                 `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix       string              `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
	RecordRetention config.TimeDuration `mapstructure:"recordRetention" yaml:"recordRetention" json:"recordRetention"`
}

// SQLConfig is a configuration for the libsql backend.
type SQLConfig struct {
	DSN       string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	AuthToken string `mapstructure:"authToken" yaml:"authToken" json:"authToken"`
}

// Config represents a set of configuration parameters for the store backend.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	Backend Backend      `mapstructure:"backend" yaml:"backend" json:"backend"`
	Memory  MemoryConfig `mapstructure:"memory" yaml:"memory" json:"memory"`
	Redis   RedisConfig  `mapstructure:"redis" yaml:"redis" json:"redis"`
	SQL     SQLConfig    `mapstructure:"sql" yaml:"sql" json:"sql"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{
		keyPrefix: opts.keyPrefix,
		Backend:   BackendMemory,
		Redis:     RedisConfig{RecordRetention: config.TimeDuration(DefaultRedisRecordRetention)},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyBackend, string(BackendMemory))
	dp.SetDefault(cfgKeyRedisRecordRetention, DefaultRedisRecordRetention.String())
}

var availableBackends = []string{string(BackendMemory), string(BackendRedis), string(BackendSQL)}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	var backendStr string
	if backendStr, err = dp.GetStringFromSet(cfgKeyBackend, availableBackends, true); err != nil {
		return err
	}
	c.Backend = Backend(strings.ToLower(backendStr))

	if c.Memory.MaxEntries, err = dp.GetInt(cfgKeyMemoryMaxEntries); err != nil {
		return err
	}
	if c.Memory.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyMemoryMaxEntries, fmt.Errorf("should be >= 0"))
	}

	if c.Redis.Addr, err = dp.GetString(cfgKeyRedisAddr); err != nil {
		return err
	}
	if c.Redis.Addr == "" && c.Backend == BackendRedis {
		return dp.WrapKeyErr(
			cfgKeyRedisAddr, fmt.Errorf("cannot be empty when %q backend is used", BackendRedis))
	}
	if c.Redis.Password, err = dp.GetString(cfgKeyRedisPassword); err != nil {
		return err
	}
	if c.Redis.DB, err = dp.GetInt(cfgKeyRedisDB); err != nil {
		return err
	}
	if c.Redis.KeyPrefix, err = dp.GetString(cfgKeyRedisKeyPrefix); err != nil {
		return err
	}
	var retention time.Duration
	if retention, err = dp.GetDuration(cfgKeyRedisRecordRetention); err != nil {
		return err
	}
	c.Redis.RecordRetention = config.TimeDuration(retention)

	if c.SQL.DSN, err = dp.GetString(cfgKeySQLDSN); err != nil {
		return err
	}
	if c.SQL.DSN == "" && c.Backend == BackendSQL {
		return dp.WrapKeyErr(
			cfgKeySQLDSN, fmt.Errorf("cannot be empty when %q backend is used", BackendSQL))
	}
	if c.SQL.AuthToken, err = dp.GetString(cfgKeySQLAuthToken); err != nil {
		return err
	}

	return nil
}
