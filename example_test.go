/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate_test

import (
	"bytes"
	"context"
	"fmt"
	stdlog "log"
	"time"

	"github.com/floodgate/floodgate"
	"github.com/floodgate/floodgate/config"
	"github.com/floodgate/floodgate/store/memstore"
)

func Example() {
	configReader := bytes.NewReader([]byte(`
rateLimit:
  amount: 3
  windowDuration: 1m
  blockExceedDuration: 5m
`))
	cfg := floodgate.NewConfig()
	if err := config.NewDefaultLoader("").LoadFromReader(configReader, config.DataTypeYAML, cfg); err != nil {
		stdlog.Fatal(err)
	}

	limiter, err := floodgate.NewLimiter(memstore.New(), cfg)
	if err != nil {
		stdlog.Fatal(err)
	}

	ctx := context.Background()
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	// The 4th request in the same minute exceeds the limit and starts a block.
	for i := 0; i < 5; i++ {
		d := limiter.DecideAt(ctx, "203.0.113.7", start.Add(time.Duration(i)*time.Second))
		if d.Admitted() {
			fmt.Printf("request %d: %s\n", i+1, d.Outcome)
			continue
		}
		fmt.Printf("request %d: %s, retry after %ds\n", i+1, d.Outcome, d.RetryAfterSeconds())
	}

	// Keys can also be rejected unconditionally.
	if err := limiter.AddToBlacklist(ctx, "198.51.100.9"); err != nil {
		stdlog.Fatal(err)
	}
	d := limiter.DecideAt(ctx, "198.51.100.9", start)
	fmt.Printf("blacklisted client: %s\n", d.Outcome)

	// Output:
	// request 1: admit
	// request 2: admit
	// request 3: admit
	// request 4: throttled, retry after 60
	// request 5: throttled, retry after 59
	// blacklisted client: blacklisted
}
