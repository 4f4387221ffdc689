/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/floodgate/floodgate/httpclient"
	"github.com/floodgate/floodgate/internal/output"
)

var (
	benchURL             string
	benchKey             string
	benchRate            float64
	benchDuration        time.Duration
	benchWorkers         int
	benchHonorRetryAfter bool
	benchOutput          string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Send a paced stream of admission checks to a running daemon",
	Long: `Bench sends GET requests to the daemon check endpoint at a fixed rate and
reports how many of them were admitted, rejected and failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(benchOutput)
		if err != nil {
			return err
		}
		if benchRate <= 0 {
			return fmt.Errorf("rate must be positive, got %g", benchRate)
		}
		if benchWorkers <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", benchWorkers)
		}
		checkURL, err := makeCheckURL(benchURL, benchKey)
		if err != nil {
			return err
		}

		// The wait timeout matches the run duration so that workers queueing
		// for a pacing slot are only cut off by the end of the run.
		client, err := httpclient.New(httpclient.Opts{
			UserAgent:            benchUserAgent(),
			RateLimit:            benchRate,
			RateLimitWaitTimeout: benchDuration,
			HonorRetryAfter:      benchHonorRetryAfter,
			Timeout:              -1,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), benchDuration)
		defer cancel()

		res := runBench(ctx, client, checkURL, benchWorkers)

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}
		fmt.Println(output.Fields(res.fields()))
		return nil
	},
}

type benchResult struct {
	Requests int     `json:"requests"`
	Admitted int     `json:"admitted"`
	Rejected int     `json:"rejected"`
	Errors   int     `json:"errors"`
	Duration string  `json:"duration"`
	Rate     float64 `json:"rate"`
}

func (r benchResult) fields() []output.Field {
	return []output.Field{
		{Name: "Requests", Value: strconv.Itoa(r.Requests)},
		{Name: "Admitted", Value: strconv.Itoa(r.Admitted)},
		{Name: "Rejected", Value: strconv.Itoa(r.Rejected)},
		{Name: "Errors", Value: strconv.Itoa(r.Errors)},
		{Name: "Duration", Value: r.Duration},
		{Name: "Rate", Value: fmt.Sprintf("%.1f/s", r.Rate)},
	}
}

// runBench keeps the workers sending requests until the context is done.
// Pacing happens inside the client's transport.
func runBench(ctx context.Context, client *http.Client, checkURL string, workers int) benchResult {
	var admitted, rejected, failed atomic.Int64

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
				if err != nil {
					failed.Inc()
					return
				}
				resp, err := client.Do(req)
				if err != nil {
					// The pacer hands out no more slots once the run deadline
					// is closer than the next slot.
					var waitErr *httpclient.PacingWaitError
					if errors.As(err, &waitErr) {
						return
					}
					if ctx.Err() != nil {
						return
					}
					failed.Inc()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				switch resp.StatusCode {
				case http.StatusOK:
					admitted.Inc()
				case http.StatusTooManyRequests:
					rejected.Inc()
				default:
					failed.Inc()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := int(admitted.Load() + rejected.Load() + failed.Load())
	res := benchResult{
		Requests: total,
		Admitted: int(admitted.Load()),
		Rejected: int(rejected.Load()),
		Errors:   int(failed.Load()),
		Duration: elapsed.Round(time.Millisecond).String(),
	}
	if elapsed > 0 {
		res.Rate = float64(total) / elapsed.Seconds()
	}
	return res
}

func makeCheckURL(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse target URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/check"
	if key != "" {
		q := u.Query()
		q.Set("key", key)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func benchUserAgent() string {
	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	return "floodgate-bench/" + version
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVar(&benchURL, "url", "http://127.0.0.1:8080", "base URL of the running daemon")
	benchCmd.Flags().StringVar(&benchKey, "key", "",
		"admission key to send (the daemon derives one from the client IP if empty)")
	benchCmd.Flags().Float64Var(&benchRate, "rate", 50, "target request rate per second")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, "how long to keep sending requests")
	benchCmd.Flags().IntVar(&benchWorkers, "concurrency", 4, "number of concurrent senders")
	benchCmd.Flags().BoolVar(&benchHonorRetryAfter, "honor-retry-after", false,
		"pause sending until the moment advertised by a 429 Retry-After header")
	benchCmd.Flags().StringVar(&benchOutput, "output-format",
		string(output.FormatTable), "Output format: table|json")
}
