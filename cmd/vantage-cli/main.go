package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vantage/internal/config"
	"vantage/internal/util"
)

const version = "0.1.0"

var (
	cfgPath  string
	logLevel string
)

// rootCmd is the base command for the vantage CLI.
var rootCmd = &cobra.Command{
	Use:   "vantage-cli",
	Short: "SMA crossover backtests and market-data sync",
	Long: `vantage-cli runs the SMA crossover demo backtest locally, syncs daily
bars from Alpaca into the local parquet or sqlite store, and probes a
running vantage-server.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vantage-cli %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.Path(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd, backtestCmd, syncCmd, healthCmd)
}

// loadConfig reads the config and installs the CLI logger on stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	util.SetDefault(util.NewWriterLogger(os.Stderr, cfg.Logging.Level, "text"))
	return cfg, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
