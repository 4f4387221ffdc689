/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/httpserver"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/profserver"
	"github.com/floodgate/floodgate/store"
)

func TestLoadAppConfig(t *testing.T) {
	t.Run("defaults are used when no config file is given", func(t *testing.T) {
		cfgFile = ""
		cfg, err := loadAppConfig()
		require.NoError(t, err)
		require.Equal(t, floodgate.NewDefaultConfig(), cfg.RateLimit)
		require.Equal(t, store.NewDefaultConfig(), cfg.Store)
		require.Equal(t, httpserver.NewDefaultConfig(), cfg.Server)
		require.Equal(t, profserver.NewDefaultConfig(), cfg.ProfServer)
		require.Equal(t, log.NewDefaultConfig(), cfg.Log)
	})

	t.Run("values from the config file override defaults", func(t *testing.T) {
		yamlData := `
rateLimit:
  amount: 300
  windowDuration: 30s
store:
  backend: memory
  memory:
    maxEntries: 50000
server:
  address: "127.0.0.1:9090"
profServer:
  enabled: true
log:
  level: warn
`
		path := filepath.Join(t.TempDir(), "floodgate.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlData), 0600))
		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		cfg, err := loadAppConfig()
		require.NoError(t, err)
		require.Equal(t, 300, cfg.RateLimit.Amount)
		require.Equal(t, config.TimeDuration(time.Second*30), cfg.RateLimit.WindowDuration)
		require.Equal(t, store.BackendMemory, cfg.Store.Backend)
		require.Equal(t, 50000, cfg.Store.Memory.MaxEntries)
		require.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
		require.True(t, cfg.ProfServer.Enabled)
		require.Equal(t, log.LevelWarn, cfg.Log.Level)
	})

	t.Run("malformed values fail with the prefixed key", func(t *testing.T) {
		yamlData := `
rateLimit:
  windowDuration: nonsense
`
		path := filepath.Join(t.TempDir(), "floodgate.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlData), 0600))
		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		_, err := loadAppConfig()
		require.ErrorContains(t, err, "rateLimit.windowDuration")
	})

	t.Run("validation failures are reported", func(t *testing.T) {
		yamlData := `
rateLimit:
  amount: -5
`
		path := filepath.Join(t.TempDir(), "floodgate.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlData), 0600))
		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		_, err := loadAppConfig()
		require.ErrorIs(t, err, floodgate.ErrInvalidConfiguration)
		require.ErrorContains(t, err, "amount must be positive")
	})
}

func TestDataTypeForPath(t *testing.T) {
	require.Equal(t, config.DataTypeYAML, dataTypeForPath("floodgate.yaml"))
	require.Equal(t, config.DataTypeYAML, dataTypeForPath("/etc/floodgate/config.yml"))
	require.Equal(t, config.DataTypeJSON, dataTypeForPath("floodgate.json"))
	require.Equal(t, config.DataTypeJSON, dataTypeForPath("FLOODGATE.JSON"))
}
