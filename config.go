/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/floodgate/floodgate/config"
)

// ErrInvalidConfiguration indicates a configuration the engine cannot run with.
// It is reported at construction time and never retried.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// UnlimitedBlockLimit disables repeat-offender escalation:
// a key may be throttled any number of times without ever being blacklisted.
const UnlimitedBlockLimit = -1

// Default configuration values.
const (
	DefaultAmount               = 60
	DefaultWindowDuration       = time.Minute
	DefaultBlockExceedDuration  = 5 * time.Minute
	DefaultPersistRetryCount    = 3
	DefaultPersistRetryInterval = time.Second
)

// BackoffStrategy defines how delays between persistence retries grow.
type BackoffStrategy string

// Backoff strategies.
const (
	// BackoffStrategyLinear makes delays grow by a constant increment
	// (interval, 2*interval, 3*interval, ...).
	BackoffStrategyLinear BackoffStrategy = "linear"

	// BackoffStrategyExponential makes delays double on every failed attempt
	// (interval, 2*interval, 4*interval, ...).
	BackoffStrategyExponential BackoffStrategy = "exponential"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyAmount                 = "amount"
	cfgKeyWindowDuration         = "windowDuration"
	cfgKeyBlockLimit             = "blockLimit"
	cfgKeyBlockExceedDuration    = "blockExceedDuration"
	cfgKeyRelativeBlock          = "relativeBlock"
	cfgKeyBlockExceedReset       = "blockExceedReset"
	cfgKeyMaxWindowRetention     = "maxWindowRetention"
	cfgKeyAccumulateRequests     = "accumulateRequests"
	cfgKeyDeleteDataOnListChange = "deleteDataOnListChange"
	cfgKeyPersistRetryCount      = "persistRetryCount"
	cfgKeyPersistRetryInterval   = "persistRetryInterval"
	cfgKeyBackoffStrategy        = "backoffStrategy"
)

// Config represents a set of configuration parameters for the admission control engine.
// It is immutable per Limiter instance.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Amount is the maximum number of requests a key may send within one window.
	Amount int `mapstructure:"amount" yaml:"amount" json:"amount"`

	// WindowDuration is the length of the counting window.
	WindowDuration config.TimeDuration `mapstructure:"windowDuration" yaml:"windowDuration" json:"windowDuration"`

	// BlockLimit is the maximum number of times a key may cross the window limit
	// before it is considered repeat-offending and escalated.
	// A negative value (UnlimitedBlockLimit) disables escalation.
	BlockLimit int `mapstructure:"blockLimit" yaml:"blockLimit" json:"blockLimit"`

	// BlockExceedDuration is how much the block of a repeat-offending key is
	// extended by on escalation. The value "forever" means the key is
	// permanently blacklisted instead.
	BlockExceedDuration Duration `mapstructure:"blockExceedDuration" yaml:"blockExceedDuration" json:"blockExceedDuration"`

	// RelativeBlock makes every request arriving during an active block
	// refresh the block's expiry to now + WindowDuration.
	RelativeBlock bool `mapstructure:"relativeBlock" yaml:"relativeBlock" json:"relativeBlock"`

	// BlockExceedReset makes BlockCount return to zero after an escalation
	// penalty is applied; otherwise it stays saturated at BlockLimit.
	BlockExceedReset bool `mapstructure:"blockExceedReset" yaml:"blockExceedReset" json:"blockExceedReset"`

	// MaxWindowRetention is how long an expired, untouched record is kept
	// before the sweeper may evict it. Zero or "forever" disables eviction.
	MaxWindowRetention Duration `mapstructure:"maxWindowRetention" yaml:"maxWindowRetention" json:"maxWindowRetention"`

	// AccumulateRequests carries unused quota from an expired window into the
	// next one as credit.
	AccumulateRequests bool `mapstructure:"accumulateRequests" yaml:"accumulateRequests" json:"accumulateRequests"`

	// DeleteDataOnListChange purges the key's window record when the key enters
	// the blacklist or the whitelist.
	DeleteDataOnListChange bool `mapstructure:"deleteDataOnListChange" yaml:"deleteDataOnListChange" json:"deleteDataOnListChange"`

	// PersistRetryCount is how many times a failed store operation is retried.
	PersistRetryCount int `mapstructure:"persistRetryCount" yaml:"persistRetryCount" json:"persistRetryCount"`

	// PersistRetryInterval is the base delay unit of the retry backoff.
	PersistRetryInterval config.TimeDuration `mapstructure:"persistRetryInterval" yaml:"persistRetryInterval" json:"persistRetryInterval"`

	// BackoffStrategy selects how retry delays grow.
	// An empty value is treated as BackoffStrategyLinear.
	BackoffStrategy BackoffStrategy `mapstructure:"backoffStrategy" yaml:"backoffStrategy" json:"backoffStrategy"`

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
		keyPrefix:              opts.keyPrefix,
		Amount:                 DefaultAmount,
		WindowDuration:         config.TimeDuration(DefaultWindowDuration),
		BlockLimit:             UnlimitedBlockLimit,
		BlockExceedDuration:    Duration{Duration: DefaultBlockExceedDuration},
		DeleteDataOnListChange: true,
		PersistRetryCount:      DefaultPersistRetryCount,
		PersistRetryInterval:   config.TimeDuration(DefaultPersistRetryInterval),
		BackoffStrategy:        BackoffStrategyLinear,
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
	dp.SetDefault(cfgKeyAmount, DefaultAmount)
	dp.SetDefault(cfgKeyWindowDuration, DefaultWindowDuration.String())
	dp.SetDefault(cfgKeyBlockLimit, UnlimitedBlockLimit)
	dp.SetDefault(cfgKeyBlockExceedDuration, DefaultBlockExceedDuration.String())
	dp.SetDefault(cfgKeyDeleteDataOnListChange, true)
	dp.SetDefault(cfgKeyPersistRetryCount, DefaultPersistRetryCount)
	dp.SetDefault(cfgKeyPersistRetryInterval, DefaultPersistRetryInterval.String())
	dp.SetDefault(cfgKeyBackoffStrategy, string(BackoffStrategyLinear))
}

var availableBackoffStrategies = []string{string(BackoffStrategyLinear), string(BackoffStrategyExponential)}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Amount, err = dp.GetInt(cfgKeyAmount); err != nil {
		return err
	}

	var windowDur time.Duration
	if windowDur, err = dp.GetDuration(cfgKeyWindowDuration); err != nil {
		return err
	}
	c.WindowDuration = config.TimeDuration(windowDur)

	if c.BlockLimit, err = dp.GetInt(cfgKeyBlockLimit); err != nil {
		return err
	}

	if c.BlockExceedDuration, err = getDuration(dp, cfgKeyBlockExceedDuration); err != nil {
		return err
	}

	if c.RelativeBlock, err = dp.GetBool(cfgKeyRelativeBlock); err != nil {
		return err
	}
	if c.BlockExceedReset, err = dp.GetBool(cfgKeyBlockExceedReset); err != nil {
		return err
	}

	if c.MaxWindowRetention, err = getDuration(dp, cfgKeyMaxWindowRetention); err != nil {
		return err
	}

	if c.AccumulateRequests, err = dp.GetBool(cfgKeyAccumulateRequests); err != nil {
		return err
	}
	if c.DeleteDataOnListChange, err = dp.GetBool(cfgKeyDeleteDataOnListChange); err != nil {
		return err
	}

	if c.PersistRetryCount, err = dp.GetInt(cfgKeyPersistRetryCount); err != nil {
		return err
	}

	var retryInterval time.Duration
	if retryInterval, err = dp.GetDuration(cfgKeyPersistRetryInterval); err != nil {
		return err
	}
	c.PersistRetryInterval = config.TimeDuration(retryInterval)

	var strategyStr string
	if strategyStr, err = dp.GetStringFromSet(cfgKeyBackoffStrategy, availableBackoffStrategies, true); err != nil {
		return err
	}
	c.BackoffStrategy = BackoffStrategy(strings.ToLower(strategyStr))

	if err = c.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration describes an engine that can run.
// Violations are reported as ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidConfiguration, c.Amount)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("%w: window duration must be positive, got %s", ErrInvalidConfiguration, c.WindowDuration)
	}
	if c.HasBlockLimit() && !c.BlockExceedDuration.IsForever && c.BlockExceedDuration.Duration <= 0 {
		return fmt.Errorf("%w: block exceed duration must be positive or %q, got %s",
			ErrInvalidConfiguration, durationForever, c.BlockExceedDuration)
	}
	if c.MaxWindowRetention.Duration < 0 {
		return fmt.Errorf("%w: max window retention must not be negative, got %s",
			ErrInvalidConfiguration, c.MaxWindowRetention)
	}
	if c.PersistRetryCount < 0 {
		return fmt.Errorf("%w: persist retry count must not be negative, got %d",
			ErrInvalidConfiguration, c.PersistRetryCount)
	}
	if c.PersistRetryCount > 0 && c.PersistRetryInterval <= 0 {
		return fmt.Errorf("%w: persist retry interval must be positive, got %s",
			ErrInvalidConfiguration, c.PersistRetryInterval)
	}
	switch c.BackoffStrategy {
	case "", BackoffStrategyLinear, BackoffStrategyExponential:
	default:
		return fmt.Errorf("%w: unknown backoff strategy %q, should be one of %v",
			ErrInvalidConfiguration, c.BackoffStrategy, availableBackoffStrategies)
	}
	return nil
}

// HasBlockLimit reports whether repeat-offender escalation is enabled.
func (c *Config) HasBlockLimit() bool {
	return c.BlockLimit >= 0
}

// EvictionEnabled reports whether expired records are subject to eviction.
func (c *Config) EvictionEnabled() bool {
	return !c.MaxWindowRetention.IsForever && c.MaxWindowRetention.Duration > 0
}

func getDuration(dp config.DataProvider, key string) (Duration, error) {
	str, err := dp.GetString(key)
	if err != nil {
		return Duration{}, err
	}
	var d Duration
	if err = d.UnmarshalText([]byte(str)); err != nil {
		return Duration{}, dp.WrapKeyErr(key, err)
	}
	return d, nil
}
