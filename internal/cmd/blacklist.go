/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/internal/output"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage permanently rejected keys",
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <key>",
	Short: "Add a key to the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		key := args[0]
		if err := h.limiter.AddToBlacklist(cmd.Context(), key); err != nil {
			if errors.Is(err, floodgate.ErrAlreadyBlacklisted) {
				fmt.Printf("%s is already blacklisted\n", key)
				return nil
			}
			return err
		}
		fmt.Printf("%s added to the blacklist\n", key)
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a key from the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		key := args[0]
		if err := h.limiter.RemoveFromBlacklist(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Printf("%s removed from the blacklist\n", key)
		return nil
	},
}

var blacklistListOutput string

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(blacklistListOutput)
		if err != nil {
			return err
		}
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		keys, err := h.limiter.ListBlacklisted(cmd.Context())
		if err != nil {
			return err
		}
		return printKeys(format, "Blacklisted", keys)
	},
}

func printKeys(format output.Format, header string, keys []string) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(keys, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}
	fmt.Println(output.Keys(header, keys))
	return nil
}

func init() {
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	blacklistCmd.AddCommand(blacklistListCmd)
	rootCmd.AddCommand(blacklistCmd)

	blacklistListCmd.Flags().StringVar(&blacklistListOutput, "output-format",
		string(output.FormatTable), "Output format: table|json")
}
