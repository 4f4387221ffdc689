/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/httpserver"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/profserver"
	"github.com/floodgate/floodgate/store"
)

// AppConfig aggregates the configuration of all floodgate components.
type AppConfig struct {
	RateLimit  *floodgate.Config  `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`
	Store      *store.Config      `mapstructure:"store" yaml:"store" json:"store"`
	Server     *httpserver.Config `mapstructure:"server" yaml:"server" json:"server"`
	ProfServer *profserver.Config `mapstructure:"profServer" yaml:"profServer" json:"profServer"`
	Log        *log.Config        `mapstructure:"log" yaml:"log" json:"log"`
}

func newDefaultAppConfig() *AppConfig {
	return &AppConfig{
		RateLimit:  floodgate.NewDefaultConfig(),
		Store:      store.NewDefaultConfig(),
		Server:     httpserver.NewDefaultConfig(),
		ProfServer: profserver.NewDefaultConfig(),
		Log:        log.NewDefaultConfig(),
	}
}

// loadAppConfig builds the effective configuration from the file passed
// via --config (if any), FLOODGATE_* environment variables and defaults.
func loadAppConfig() (*AppConfig, error) {
	cfg := newDefaultAppConfig()
	loader := config.NewDefaultLoader(envVarsPrefix)
	if cfgFile == "" {
		err := loader.LoadFromReader(bytes.NewReader(nil), config.DataTypeYAML,
			cfg.RateLimit, cfg.Store, cfg.Server, cfg.ProfServer, cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		return cfg, nil
	}
	if err := loader.LoadFromFile(cfgFile, dataTypeForPath(cfgFile),
		cfg.RateLimit, cfg.Store, cfg.Server, cfg.ProfServer, cfg.Log); err != nil {
		return nil, fmt.Errorf("load configuration from %q: %w", cfgFile, err)
	}
	return cfg, nil
}

func dataTypeForPath(path string) config.DataType {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return config.DataTypeJSON
	}
	return config.DataTypeYAML
}
