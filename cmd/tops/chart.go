package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/tops"
	"github.com/aretw0/tops/internal/cli"
	"github.com/aretw0/tops/internal/config"
	"github.com/aretw0/tops/internal/presentation/graph"
	"github.com/aretw0/tops/internal/presentation/tui"
	"github.com/aretw0/tops/pkg/domain"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Work with the statechart declared in --dir",
}

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the chart for consistency",
	Long: `Loads every declaration and reports all configuration errors at once:
missing names, duplicate states, unknown parents, initial children or trigger targets,
and parent cycles.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, err := setupChart(cmd, args)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		var opts []tops.Option
		if cfg.Chart.Root != "" {
			opts = append(opts, tops.WithRoot(cfg.Chart.Root))
		}
		eng, err := tops.New(cfg.Chart.Dir, opts...)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chart is valid! ✅ (%d states, root %q)\n", eng.Chart().Len(), eng.Root())
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the chart as a Mermaid state diagram",
	Long:  `Outputs a Mermaid diagram (stateDiagram-v2). With --session, the selected path of that session is highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn := mustEngine(cmd, args)
		defer closeFn()

		var overlay *graph.Overlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			snap, err := eng.Sessions().Load(cmd.Context(), sessionID)
			if err != nil {
				fmt.Printf("Error loading session '%s': %v\n", sessionID, err)
				os.Exit(1)
			}
			overlay = &graph.Overlay{Current: snap.Current}
			if eng.Chart().Has(snap.Current) {
				overlay.Selected = eng.Chart().Ancestry(snap.Current)
			}
		}
		fmt.Print(graph.GenerateMermaid(eng.Chart(), overlay))
	},
}

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Drive the chart from the keyboard",
	Long: `Renders the chart as a tree and drives it with single key presses:
1-9 fire the listed triggers, space shows the documentation of the current state, q quits.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setupChart(cmd, args)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sessionID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("fresh")
		watch, _ := cmd.Flags().GetBool("watch")
		plain := plainOutput(cmd)

		if !plain {
			tui.PrintBanner(os.Stdout, tops.Version)
		}

		terminal, err := cli.OpenTerminal(os.Stdin, os.Stdout)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer terminal.Close()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		opts := cli.ChartOptions{
			SessionID: sessionID,
			Fresh:     fresh,
			Keys:      cli.ReadKeys(terminal.In),
			Out:       terminal.Out,
			Plain:     plain,
			Logger:    logger,
		}

		var closers []func() error
		defer func() {
			for _, c := range closers {
				_ = c()
			}
		}()
		build := func() (*tops.Engine, error) {
			eng, closeFn, err := cli.CreateEngine(cfg, cli.EngineOptions{Logger: logger})
			if err != nil {
				return nil, err
			}
			closers = append(closers, closeFn)
			return eng, nil
		}

		if watch {
			if opts.SessionID == "" {
				abs, _ := filepath.Abs(cfg.Chart.Dir)
				opts.SessionID = cli.WatchSessionID(abs)
			}
			err = cli.RunWatch(sigCtx, build, opts)
		} else {
			var eng *tops.Engine
			eng, err = build()
			if err == nil {
				_, err = cli.RunChart(sigCtx, eng, opts)
			}
		}

		if err := cli.HandleExecutionError(err); err != nil {
			terminal.Close()
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(validateCmd, graphCmd, runCmd)

	graphCmd.Flags().String("session", "", "Highlight the selected path of this session")

	runCmd.Flags().StringP("session", "s", "", "Persist the session under this ID")
	runCmd.Flags().Bool("fresh", false, "Discard the persisted session before starting")
	runCmd.Flags().BoolP("watch", "w", false, "Reload the chart when a declaration changes")
}

// setupChart is setup with an optional positional chart directory.
func setupChart(cmd *cobra.Command, args []string) (config.Config, *slog.Logger, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return cfg, nil, err
	}
	if len(args) > 0 {
		cfg.Chart.Dir = args[0]
	}
	return cfg, logger, nil
}

// mustEngine builds the engine for the chart commands or exits.
func mustEngine(cmd *cobra.Command, args []string) (*tops.Engine, func() error) {
	cfg, logger, err := setupChart(cmd, args)
	if err == nil {
		var eng *tops.Engine
		var closeFn func() error
		eng, closeFn, err = cli.CreateEngine(cfg, cli.EngineOptions{Logger: logger})
		if err == nil {
			return eng, closeFn
		}
	}
	if errors.Is(err, domain.ErrConfiguration) {
		fmt.Printf("Chart is invalid: %v\n", err)
	} else {
		fmt.Printf("Error initializing tops: %v\n", err)
	}
	os.Exit(1)
	return nil, nil
}
