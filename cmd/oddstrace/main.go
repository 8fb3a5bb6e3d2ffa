package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netrecon/oddstrace/pkg/config"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("oddstrace: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		targets    []string
		siteDomain string
		input      string
		outputs    []string
		logPath    string
		streamAddr string
		headless   bool
		resolve    bool
		testSinks  bool
	)

	cmd := &cobra.Command{
		Use:   "oddstrace",
		Short: "Classify the network traffic a betting site's pages produce",
		Long: `oddstrace drives a headless browser at a set of target pages, observes
every network exchange they produce, classifies each one (api, ajax,
websocket, external provider, static, other), and aggregates per-run
summaries for the configured report sinks.

All detection is keyword and host-table matching over observed traffic.
That is inherently heuristic: substrings match by coincidence, and seeing
traffic to a known odds vendor's host proves only that the browser talked
to it, not how the site's backend works.

Examples:
  # Analyze two pages, NDJSON report to stderr
  oddstrace --target https://www.betika.com/en-ke/ --target https://www.betika.com/en-ke/live

  # Ship per-record envelopes to Kafka and Postgres as well
  OUTPUTS=log,kafka,postgres oddstrace --target https://www.betika.com/en-ke/

  # Watch a run live over WebSocket
  oddstrace --stream-addr :8999 --target https://www.betika.com/en-ke/

  # Re-run the pipeline offline over previously captured raw events
  oddstrace --input raw-events.ndjson`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(targets) > 0 {
				cfg.Targets = targets
			}
			if siteDomain != "" {
				cfg.SiteDomain = siteDomain
			}
			if len(outputs) > 0 {
				cfg.Outputs = outputs
			}
			if logPath != "" {
				cfg.LogPath = logPath
			}
			if streamAddr != "" {
				cfg.StreamAddr = streamAddr
			}
			if cmd.Flags().Changed("headless") {
				cfg.Headless = headless
			}
			if cmd.Flags().Changed("resolve-providers") {
				cfg.ResolveHint = resolve
			}

			if testSinks {
				return runSinkSelfTest(cmd.Context(), cfg)
			}
			return run(cmd.Context(), cfg, input)
		},
	}

	cmd.Flags().StringArrayVar(&targets, "target", nil, "page URL to analyze (repeatable; overrides TARGET_URLS)")
	cmd.Flags().StringVar(&siteDomain, "site-domain", "", "the site's own domain, never classified external")
	cmd.Flags().StringVar(&input, "input", "", "replay raw events from an NDJSON file instead of a browser")
	cmd.Flags().StringSliceVar(&outputs, "output", nil, "report sinks: log, kafka, postgres")
	cmd.Flags().StringVar(&logPath, "log-path", "", "NDJSON output path for the log sink (default stderr)")
	cmd.Flags().StringVar(&streamAddr, "stream-addr", "", "serve a live WebSocket feed of classified records")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	cmd.Flags().BoolVar(&resolve, "resolve-providers", false, "collect DNS evidence for detected provider hosts")
	cmd.Flags().BoolVar(&testSinks, "test-sinks", false, "send sample envelopes through the configured sinks and exit")

	return cmd
}
