/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floodgate/floodgate/internal/output"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage keys admitted without counting",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <key>",
	Short: "Add a key to the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		key := args[0]
		if err := h.limiter.AddToWhitelist(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("%s added to the whitelist\n", key)
		return nil
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a key from the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		key := args[0]
		if err := h.limiter.RemoveFromWhitelist(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("%s removed from the whitelist\n", key)
		return nil
	},
}

var whitelistListOutput string

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(whitelistListOutput)
		if err != nil {
			return err
		}
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		keys, err := h.limiter.ListWhitelisted(cmd.Context())
		if err != nil {
			return err
		}
		return printKeys(format, "Whitelisted", keys)
	},
}

func init() {
	whitelistCmd.AddCommand(whitelistAddCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
	whitelistCmd.AddCommand(whitelistListCmd)
	rootCmd.AddCommand(whitelistCmd)

	whitelistListCmd.Flags().StringVar(&whitelistListOutput, "output-format",
		string(output.FormatTable), "Output format: table|json")
}
