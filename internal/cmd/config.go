/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/httpserver"
	"github.com/floodgate/floodgate/log"
	"github.com/floodgate/floodgate/profserver"
	"github.com/floodgate/floodgate/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage floodgate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "floodgate.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := writeDefaultConfig(path, dataTypeForPath(path)); err != nil {
			return fmt.Errorf("write configuration to %q: %w", path, err)
		}
		fmt.Printf("configuration written to %s\n", path)
		return nil
	},
}

// writeDefaultConfig saves the defaults of all components into a single file.
func writeDefaultConfig(path string, dataType config.DataType) error {
	dp := config.NewViperAdapter()
	for _, section := range []config.Config{
		floodgate.NewDefaultConfig(),
		store.NewDefaultConfig(),
		httpserver.NewDefaultConfig(),
		profserver.NewDefaultConfig(),
		log.NewDefaultConfig(),
	} {
		sectionDp := config.DataProvider(dp)
		if kp, ok := section.(config.KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
			sectionDp = config.NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
		}
		section.SetProviderDefaults(sectionDp)
	}
	return dp.SaveToFile(path, dataType)
}

var configShowJSON bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after applying the config file, environment variables and defaults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		if configShowJSON {
			payload, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}
		payload, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(payload))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "print JSON instead of YAML")
}
