/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/httpserver"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/profserver"
	"github.com/floodgate/floodgate/store"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floodgate.yaml")
	require.NoError(t, writeDefaultConfig(path, config.DataTypeYAML))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "ratelimit:")
	require.Contains(t, string(data), "server:")
	require.Contains(t, string(data), "profserver:")

	// The written snapshot loads back to the defaults.
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	cfg, err := loadAppConfig()
	require.NoError(t, err)
	require.Equal(t, floodgate.NewDefaultConfig(), cfg.RateLimit)
	require.Equal(t, store.NewDefaultConfig(), cfg.Store)
	require.Equal(t, httpserver.NewDefaultConfig(), cfg.Server)
	require.Equal(t, profserver.NewDefaultConfig(), cfg.ProfServer)
	require.Equal(t, log.NewDefaultConfig(), cfg.Log)
}
