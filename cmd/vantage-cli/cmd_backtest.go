package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vantage/internal/app"
	"vantage/internal/domain"
)

var (
	btSymbol    string
	btWindow    int
	btAltWindow int
	btDays      int
	btReal      bool
	btFormat    string
	btTimeout   time.Duration
)

// backtestCmd runs the demo backtest in-process.
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the SMA crossover backtest locally",
	Long: `Run the SMA crossover demo backtest in-process, using the same service as
vantage-server. Unset flags take the config defaults.

Example usage:
  vantage-cli backtest                              # DUMMY, synthetic series
  vantage-cli backtest --symbol SPY --real --days 90
  vantage-cli backtest --window 3 --format json`,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&btSymbol, "symbol", "", "symbol to backtest")
	f.IntVar(&btWindow, "window", 0, "primary SMA window")
	f.IntVar(&btAltWindow, "alt-window", 0, "alternate SMA window")
	f.IntVar(&btDays, "days", 0, "number of daily closes")
	f.BoolVar(&btReal, "real", false, "use the configured real data source")
	f.StringVar(&btFormat, "format", "table", "output format: table or json")
	f.DurationVar(&btTimeout, "timeout", 60*time.Second, "overall timeout")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closer, err := app.NewService(cfg, app.Calendar(), nil, slog.Default())
	if err != nil {
		return err
	}
	defer closer.Close()

	req := app.Defaults(cfg).Request()
	if btSymbol != "" {
		req.Symbol = btSymbol
	}
	if cmd.Flags().Changed("window") {
		req.Window = btWindow
	}
	if cmd.Flags().Changed("alt-window") {
		req.AltWindow = btAltWindow
	}
	if cmd.Flags().Changed("days") {
		req.Days = btDays
	}
	req.UseReal = btReal

	ctx, cancel := context.WithTimeout(cmd.Context(), btTimeout)
	defer cancel()

	res, err := svc.Run(ctx, req)
	if err != nil {
		return err
	}

	switch strings.ToLower(btFormat) {
	case "json":
		return writeResultJSON(cmd.OutOrStdout(), res)
	case "table":
		return writeResultTable(cmd.OutOrStdout(), res)
	default:
		return fmt.Errorf("unknown format %q: want table or json", btFormat)
	}
}

func writeResultJSON(w io.Writer, res *domain.BacktestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeResultTable(w io.Writer, res *domain.BacktestResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	first, last := res.Prices[0], res.Prices[len(res.Prices)-1]

	fmt.Fprintf(tw, "SYMBOL\t%s\n", res.Symbol)
	fmt.Fprintf(tw, "PERIOD\t%s .. %s (%d points)\n", first.Date, last.Date, res.NumPoints)
	fmt.Fprintf(tw, "CLOSE\t%.2f -> %.2f\n", first.Close, last.Close)
	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "BUY & HOLD\t%+.2f%%\n", res.BuyAndHoldReturnPct)
	fmt.Fprintf(tw, "SMA(%d)\t%+.2f%%\n", res.Window, res.SMAStrategyReturnPct)
	fmt.Fprintf(tw, "SMA(%d)\t%+.2f%%\n", res.AltWindow, res.AltSMAStrategyReturnPct)
	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "MAX DRAWDOWN\t%.2f%%\n", res.MaxDrawdownPct)
	fmt.Fprintf(tw, "VOLATILITY\t%.2f%%\n", res.VolatilityPct)
	fmt.Fprintf(tw, "SHARPE-LIKE\t%.2f\n", res.SharpeLike)
	return tw.Flush()
}
