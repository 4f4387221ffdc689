/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package cmd implements the floodgate command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

// envVarsPrefix is the prefix of environment variables
// that override configuration values (e.g. FLOODGATE_RATELIMIT_AMOUNT).
const envVarsPrefix = "floodgate"

var (
	cfgFile string

	// Version info set by the main package.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package to pass build information in.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "floodgate",
	Short: "Sliding-window admission control for keyed clients",
	Long: `Floodgate counts requests per key in fixed windows, throttles keys that
exceed the configured amount and escalates repeat offenders to a blacklist.

Use the subcommands to run the daemon or to manage the underlying store.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (YAML or JSON; defaults and FLOODGATE_* env vars are used if omitted)")
}
