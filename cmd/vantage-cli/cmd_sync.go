package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"vantage/internal/app"
	"vantage/internal/config"
	"vantage/internal/gather/us"
)

var (
	syncSymbols     []string
	syncSymbolsFile string
	syncStart       string
	syncStore       string
	syncWorkers     int
)

// syncCmd copies Alpaca daily bars into the local store.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch Alpaca daily bars into the local parquet or sqlite store",
	Long: `Fetch daily bars from Alpaca for a list of symbols and write them to the
local bar store, so real-data backtests can run with data.real_source set to
parquet or sqlite.

Example usage:
  vantage-cli sync --symbols SPY,QQQ --start 2023-01-01
  vantage-cli sync --symbols-file reference/watchlist.csv --store sqlite`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringSliceVar(&syncSymbols, "symbols", nil, "comma-separated symbols")
	f.StringVar(&syncSymbolsFile, "symbols-file", "", "CSV file whose first column lists symbols")
	f.StringVar(&syncStart, "start", "2020-01-01", "first date to fetch (YYYY-MM-DD)")
	f.StringVar(&syncStore, "store", config.SourceParquet, "destination store: parquet or sqlite")
	f.IntVar(&syncWorkers, "workers", 4, "concurrent symbol fetches")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	symbols := syncSymbols
	if syncSymbolsFile != "" {
		fromFile, err := us.LoadCSVSymbols(syncSymbolsFile)
		if err != nil {
			return err
		}
		symbols = append(symbols, fromFile...)
	}
	if len(us.NormalizeSymbols(symbols)) == 0 {
		return fmt.Errorf("no symbols: pass --symbols or --symbols-file")
	}

	fetcher, err := app.NewBarFetcher(cfg, slog.Default())
	if err != nil {
		return err
	}
	st, closer, err := app.OpenStore(cfg, strings.ToLower(syncStore))
	if err != nil {
		return err
	}
	defer closer.Close()

	g := us.NewDailyBarGatherer(fetcher, st, symbols, syncStart, syncWorkers, app.Calendar())
	return g.Run(cmd.Context())
}
