package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/tops/internal/cli"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/viewer"
)

var logwatchCmd = &cobra.Command{
	Use:   "logwatch",
	Short: "Follow the log feed",
	Long: `Polls the log feed and prints every record that passes the source filter and minimum level.

While running, type key=value pairs and press enter to update the options,
e.g. "interval=2 max=500 filter=tcc.* level=warning". An empty line reconnects after a server error.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		opts := viewer.LogOptions{
			Interval:     cfg.Logwatch.Interval,
			MaxMessages:  cfg.Logwatch.MaxMessages,
			SourceFilter: cfg.Logwatch.SourceFilter,
			MinLevel:     cfg.Logwatch.MinLevel,
		}
		if cmd.Flags().Changed("interval") {
			opts.Interval, _ = cmd.Flags().GetDuration("interval")
		}
		if cmd.Flags().Changed("max") {
			opts.MaxMessages, _ = cmd.Flags().GetInt("max")
		}
		if cmd.Flags().Changed("filter") {
			opts.SourceFilter, _ = cmd.Flags().GetString("filter")
		}
		if level, _ := cmd.Flags().GetString("level"); level != "" {
			lvl, err := domain.ParseLevel(level)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			opts.MinLevel = lvl
		}
		if err := opts.Validate(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		url := cfg.Feed.LogURL
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			url = u
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		err = cli.RunLogwatch(sigCtx, opts, feedOptions(cmd, url, cfg.Feed.Timeout, cfg.Metrics.Addr, logger))
		if err := cli.HandleExecutionError(err); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Follow archiver channel values",
	Long: `Subscribes to the archiver channels matching --pattern and prints their values as they change.
--selector narrows the printed channels with a glob over the dotted names ("*" spans one
element, "**" any number, "{a,b}" lists alternatives).

While running, type a new pattern and press enter to resubscribe. An empty line reconnects.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		pattern := cfg.Archiver.Pattern
		if p, _ := cmd.Flags().GetString("pattern"); p != "" {
			pattern = p
		}
		selector := cfg.Archiver.Selector
		if cmd.Flags().Changed("selector") {
			selector, _ = cmd.Flags().GetString("selector")
		}
		interval := cfg.Archiver.Interval
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}
		url := cfg.Feed.ArchiverURL
		if u, _ := cmd.Flags().GetString("url"); u != "" {
			url = u
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		err = cli.RunArchiver(sigCtx, pattern, selector, interval, feedOptions(cmd, url, cfg.Feed.Timeout, cfg.Metrics.Addr, logger))
		if err := cli.HandleExecutionError(err); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(logwatchCmd, archiverCmd)

	logwatchCmd.Flags().String("url", "", "Log feed URL (default: feed.log_url)")
	logwatchCmd.Flags().Duration("interval", time.Second, "Update interval")
	logwatchCmd.Flags().Int("max", viewer.DefaultMaxMessages, "Maximum displayed messages (0: unlimited)")
	logwatchCmd.Flags().String("filter", viewer.DefaultSourceFilter, "Source filter, e.g. tcc.* or *.error")
	logwatchCmd.Flags().String("level", "", "Minimum level: DEBUG, INFO, WARNING, ERROR or CRITICAL")
	logwatchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	archiverCmd.Flags().String("url", "", "Archiver feed URL (default: feed.archiver_url)")
	archiverCmd.Flags().String("pattern", "", "Channel pattern sent to the server (default: archiver.pattern)")
	archiverCmd.Flags().String("selector", "", "Client-side glob over the subscribed channels")
	archiverCmd.Flags().Duration("interval", time.Second, "Update interval")
	archiverCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func feedOptions(cmd *cobra.Command, url string, timeout time.Duration, metricsAddr string, logger *slog.Logger) cli.FeedOptions {
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		metricsAddr = addr
	}
	opts := cli.FeedOptions{
		URL:         url,
		Timeout:     timeout,
		MetricsAddr: metricsAddr,
		Out:         os.Stdout,
		Plain:       plainOutput(cmd),
		Logger:      logger,
	}
	if cli.IsTerminal(os.Stdin) {
		opts.Lines = cli.ReadLines(os.Stdin)
	}
	return opts
}
