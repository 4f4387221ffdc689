/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package main

import (
	"os"

	"github.com/floodgate/floodgate/internal/cmd"
)

// Version information set via ldflags during build, e.g.
// go build -ldflags="-X main.version=1.2.0 -X main.commit=abc1234 -X main.buildDate=2025-08-25".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
