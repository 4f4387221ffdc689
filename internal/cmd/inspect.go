/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/internal/output"
)

var inspectOutput string

var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Show the stored admission state of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(inspectOutput)
		if err != nil {
			return err
		}
		h, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = h.Close() }()

		ctx := cmd.Context()
		key := args[0]

		state := keyState{Key: key}
		if state.Record, err = h.store.GetRecord(ctx, key); err != nil {
			return err
		}
		if state.Blacklisted, err = h.store.IsBlacklisted(ctx, key); err != nil {
			return err
		}
		if state.Whitelisted, err = h.store.IsWhitelisted(ctx, key); err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}
		fmt.Println(output.Fields(state.fields(time.Now())))
		return nil
	},
}

type keyState struct {
	Key         string            `json:"key"`
	Blacklisted bool              `json:"blacklisted"`
	Whitelisted bool              `json:"whitelisted"`
	Record      *floodgate.Record `json:"record"`
}

func (s keyState) fields(now time.Time) []output.Field {
	fields := []output.Field{
		{Name: "Key", Value: s.Key},
		{Name: "Blacklisted", Value: strconv.FormatBool(s.Blacklisted)},
		{Name: "Whitelisted", Value: strconv.FormatBool(s.Whitelisted)},
	}
	if s.Record == nil {
		return append(fields, output.Field{Name: "Window", Value: "no stored record"})
	}
	window := "expired"
	if !s.Record.IsExpired(now) {
		window = fmt.Sprintf("expires in %s", s.Record.WindowExpiry.Sub(now).Round(time.Second))
	}
	return append(fields,
		output.Field{Name: "Requests in window", Value: strconv.Itoa(s.Record.RequestCount)},
		output.Field{Name: "Window expiry", Value: s.Record.WindowExpiry.UTC().Format(time.RFC3339)},
		output.Field{Name: "Window", Value: window},
		output.Field{Name: "Block count", Value: strconv.Itoa(s.Record.BlockCount)},
	)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectOutput, "output-format",
		string(output.FormatTable), "Output format: table|json")
}
