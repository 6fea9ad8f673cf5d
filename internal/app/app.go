// Package app builds the backtest service and its data sources from a
// loaded configuration. Both binaries share it.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"vantage/internal/backtest"
	"vantage/internal/config"
	"vantage/internal/domain"
	"vantage/internal/gather/us"
	"vantage/internal/prices"
	"vantage/internal/store"
	"vantage/internal/util"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Calendar returns the clock used to date series: the local time zone.
func Calendar() *util.Calendar {
	return util.NewCalendar(time.Local, nil)
}

// Defaults converts the backtest section into request defaults.
func Defaults(cfg *config.Config) backtest.Defaults {
	b := cfg.Backtest
	return backtest.Defaults{
		Symbol:    b.DefaultSymbol,
		Window:    b.DefaultWindow,
		AltWindow: b.DefaultAltWindow,
		Days:      b.DefaultDays,
	}
}

// Limits converts the backtest section into service limits.
func Limits(cfg *config.Config) backtest.Limits {
	return backtest.Limits{
		MinDays:   cfg.Backtest.MinDays,
		MaxDays:   cfg.Backtest.MaxDays,
		MaxWindow: cfg.Backtest.MaxWindow,
	}
}

// SyntheticParams converts the synthetic section.
func SyntheticParams(cfg *config.Config) prices.SyntheticParams {
	s := cfg.Synthetic
	return prices.SyntheticParams{
		BasePrice:    s.BasePrice,
		Drift:        s.Drift,
		WiggleAmp:    s.WiggleAmp,
		WigglePeriod: s.WigglePeriod,
	}
}

// FetchOptions converts the alpaca and data sections into fetcher options.
func FetchOptions(cfg *config.Config) us.FetchOptions {
	opts := us.DefaultFetchOptions()
	if cfg.Alpaca.Feed != "" {
		opts.Feed = cfg.Alpaca.Feed
	}
	if cfg.Alpaca.Adjustment != "" {
		opts.Adjustment = cfg.Alpaca.Adjustment
	}
	if cfg.Data.Timeout > 0 {
		opts.Timeout = cfg.Data.Timeout
	}
	opts.MaxAttempts = cfg.Data.MaxAttempts
	opts.RateLimitPerMin = cfg.Data.RateLimitPerMin
	return opts
}

// NewBarFetcher creates an Alpaca bar fetcher. It fails without credentials.
func NewBarFetcher(cfg *config.Config, log *slog.Logger) (*us.BarFetcher, error) {
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return nil, errors.New("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}
	client := us.NewClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	return us.NewBarFetcher(client, FetchOptions(cfg), log), nil
}

// OpenStore opens the local bar store of the given kind ("parquet" or
// "sqlite"). The returned closer releases it.
func OpenStore(cfg *config.Config, kind string) (store.BarStore, io.Closer, error) {
	switch kind {
	case config.SourceParquet:
		return store.NewParquetStore(cfg.Data.DataDir), nopCloser{}, nil
	case config.SourceSQLite:
		if dir := filepath.Dir(cfg.Data.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		st, err := store.NewSQLiteStore(cfg.Data.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite %s: %w", cfg.Data.SQLitePath, err)
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q: want parquet or sqlite", kind)
	}
}

// RealProvider builds the provider named by data.real_source. It returns a
// nil provider when no real source is configured.
func RealProvider(cfg *config.Config, cal *util.Calendar, log *slog.Logger) (prices.Provider, io.Closer, error) {
	switch cfg.Data.RealSource {
	case config.SourceNone:
		return nil, nopCloser{}, nil
	case config.SourceAlpaca:
		f, err := NewBarFetcher(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return us.NewAlpacaSource(f, cal), nopCloser{}, nil
	default:
		st, closer, err := OpenStore(cfg, cfg.Data.RealSource)
		if err != nil {
			return nil, nil, err
		}
		p := prices.NewStoreProvider(cfg.Data.RealSource, st, domain.Market(cfg.Data.Market), cal)
		return p, closer, nil
	}
}

// NewService wires the backtest service from cfg. rec may be nil.
func NewService(cfg *config.Config, cal *util.Calendar, rec backtest.Recorder, log *slog.Logger) (*backtest.Service, io.Closer, error) {
	if log == nil {
		log = slog.Default()
	}
	src, closer, err := RealProvider(cfg, cal, log)
	if err != nil {
		return nil, nil, err
	}
	opts := []backtest.Option{
		backtest.WithLimits(Limits(cfg)),
		backtest.WithLogger(log),
	}
	if src != nil {
		opts = append(opts, backtest.WithRealProvider(src))
		log.Info("real data source enabled", "source", src.Name())
	}
	if rec != nil {
		opts = append(opts, backtest.WithRecorder(rec))
	}
	svc := backtest.NewService(prices.NewSynthetic(SyntheticParams(cfg), cal), opts...)
	return svc, closer, nil
}
