package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/tops/internal/cli"
	"github.com/aretw0/tops/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tops",
	Short: "tops drives statechart consoles and watches the observatory feeds",
	Long: `tops runs hierarchical statechart user interfaces declared as Markdown files,
and follows the log and archiver feeds of the operations console.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Project directory holding the configuration and the state declarations")
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default: tops.yaml, tops.yml or tops.toml in --dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("plain", false, "Disable colors and styling")
}

// loadConfig reads the configuration file and applies the persistent flags over it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	dir, _ := cmd.Flags().GetString("dir")
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Discover(dir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	// Relative paths of the configuration are relative to the project directory.
	cfg.Chart.Dir = resolve(dir, cfg.Chart.Dir)
	if cfg.Chart.Sessions != "" {
		cfg.Chart.Sessions = resolve(dir, cfg.Chart.Sessions)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// setup loads the configuration and the logger every command starts from.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// plainOutput reports whether styling is off, either by flag or because stdout is not a terminal.
func plainOutput(cmd *cobra.Command) bool {
	plain, _ := cmd.Flags().GetBool("plain")
	return plain || !cli.IsTerminal(os.Stdout)
}
