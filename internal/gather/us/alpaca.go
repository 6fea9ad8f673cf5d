package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"vantage/internal/domain"
	"vantage/internal/gather"
	"vantage/internal/prices"
	"vantage/internal/store"
	"vantage/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)
var _ prices.Provider = (*AlpacaSource)(nil)

// ---------------------------------------------------------------------------
// BarFetcher: resilient daily-bar requests against the Alpaca REST API.
// ---------------------------------------------------------------------------

// BarsClient is the subset of *marketdata.Client used here.
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// FetchOptions tunes BarFetcher.
type FetchOptions struct {
	Feed            string        // "iex" or "sip"
	Adjustment      string        // "raw", "split", "dividend" or "all"
	Timeout         time.Duration // per Fetch call, all attempts included
	MaxAttempts     int
	BaseDelay       time.Duration // first retry delay, doubled per attempt
	RateLimitPerMin int           // <= 0 disables limiting
	TripAfter       uint32        // consecutive failures that open the breaker
	OpenFor         time.Duration // how long the breaker stays open
}

// DefaultFetchOptions returns options suitable for the free IEX feed.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Feed:            "iex",
		Adjustment:      "split",
		Timeout:         15 * time.Second,
		MaxAttempts:     3,
		BaseDelay:       250 * time.Millisecond,
		RateLimitPerMin: 200,
		TripAfter:       3,
		OpenFor:         60 * time.Second,
	}
}

// NewClient creates an Alpaca market-data client. An empty dataURL keeps
// the SDK default endpoint.
func NewClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// BarFetcher fetches daily bars one symbol at a time behind a rate limiter,
// bounded retries and a circuit breaker. It is safe for concurrent use.
type BarFetcher struct {
	client  BarsClient
	opts    FetchOptions
	limiter *util.RateLimiter
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewBarFetcher wraps client with the given options.
func NewBarFetcher(client BarsClient, opts FetchOptions, log *slog.Logger) *BarFetcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 3
	}
	log = log.With("component", "alpaca-bars")

	st := gobreaker.Settings{
		Name:     "alpaca-bars",
		Interval: 60 * time.Second,
		Timeout:  opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BarFetcher{
		client:  client,
		opts:    opts,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin),
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

// Fetch returns the daily bars for symbol within [start, end]. Every failure
// is reported as domain.ErrUpstreamUnavailable, except cancellation of ctx.
func (f *BarFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Feed:       marketdata.Feed(f.opts.Feed),
		Adjustment: marketdata.Adjustment(f.opts.Adjustment),
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, f.opts.MaxAttempts, f.opts.BaseDelay, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		out, err := f.breaker.Execute(func() (interface{}, error) {
			return f.getBars(ctx, symbol, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return util.Permanent(err)
		}
		if err != nil {
			f.log.Debug("GetBars attempt failed", "symbol", symbol, "error", err)
			return err
		}
		raw = out.([]marketdata.Bar)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: GetBars %s: %v", domain.ErrUpstreamUnavailable, symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars, nil
}

// getBars runs the blocking SDK call so that ctx can abandon it.
func (f *BarFetcher) getBars(ctx context.Context, symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	type result struct {
		bars []marketdata.Bar
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		bars, err := f.client.GetBars(symbol, req)
		ch <- result{bars: bars, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.bars, r.err
	}
}

// ---------------------------------------------------------------------------
// AlpacaSource: real closes for the backtest service.
// ---------------------------------------------------------------------------

// AlpacaSource serves normalized daily closes straight from Alpaca.
type AlpacaSource struct {
	fetcher *BarFetcher
	cal     *util.Calendar
}

// NewAlpacaSource creates a price provider backed by fetcher.
func NewAlpacaSource(fetcher *BarFetcher, cal *util.Calendar) *AlpacaSource {
	if cal == nil {
		cal = util.NewCalendar(nil, nil)
	}
	return &AlpacaSource{fetcher: fetcher, cal: cal}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// Series fetches enough calendar history to cover days sessions and keeps
// the latest days valid closes.
func (s *AlpacaSource) Series(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days %d must be >= 1", domain.ErrInvalidParameter, days)
	}
	end := s.cal.Today()
	start := end.AddDate(0, 0, -prices.LookbackDays(days))

	bars, err := s.fetcher.Fetch(ctx, symbol, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	series, err := prices.Normalize(bars, days)
	if err != nil {
		return nil, fmt.Errorf("alpaca %s: %w", strings.ToUpper(symbol), err)
	}
	return series, nil
}

// ---------------------------------------------------------------------------
// DailyBarGatherer: copies daily bars for a symbol list into a BarStore.
// ---------------------------------------------------------------------------

// DailyBarGatherer fetches daily bars for a fixed symbol list and writes them
// to a local BarStore so later backtests can run offline.
type DailyBarGatherer struct {
	fetcher    *BarFetcher
	store      store.BarStore
	market     domain.Market
	symbols    []string
	startDate  string
	maxWorkers int
	cal        *util.Calendar
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer for symbols from startDate
// (YYYY-MM-DD) through today.
func NewDailyBarGatherer(fetcher *BarFetcher, s store.BarStore, symbols []string, startDate string, maxWorkers int, cal *util.Calendar) *DailyBarGatherer {
	if cal == nil {
		cal = util.NewCalendar(nil, nil)
	}
	return &DailyBarGatherer{
		fetcher:    fetcher,
		store:      s,
		market:     domain.MarketUS,
		symbols:    NormalizeSymbols(symbols),
		startDate:  startDate,
		maxWorkers: max(maxWorkers, 1),
		cal:        cal,
		log:        slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches and stores bars for every symbol. A symbol that fails is
// logged and skipped; Run reports an error only if none succeeded or ctx
// was cancelled.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse(domain.DateLayout, g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end := g.cal.Today().AddDate(0, 0, 1).Add(-time.Nanosecond)
	if len(g.symbols) == 0 {
		return fmt.Errorf("%w: no symbols to gather", domain.ErrInvalidParameter)
	}

	g.log.Info("starting us-daily", "symbols", len(g.symbols), "start", g.startDate)
	runStart := time.Now()

	var (
		eg       errgroup.Group
		results  = make([]error, len(g.symbols))
		barCount = make([]int, len(g.symbols))
	)
	eg.SetLimit(g.maxWorkers)

	for i, sym := range g.symbols {
		eg.Go(func() error {
			if ctx.Err() != nil {
				results[i] = ctx.Err()
				return nil
			}
			bars, err := g.fetcher.Fetch(ctx, sym, start, end)
			if err == nil && len(bars) > 0 {
				err = g.store.WriteBars(ctx, g.market, bars)
			}
			if err != nil {
				g.log.Error("symbol failed", "symbol", sym, "err", err)
			} else {
				g.log.Info("symbol done", "symbol", sym, "bars", len(bars))
			}
			results[i] = err
			barCount[i] = len(bars)
			return nil
		})
	}
	_ = eg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var failed, total int
	for i, err := range results {
		if err != nil {
			failed++
			continue
		}
		total += barCount[i]
	}

	g.log.Info("complete",
		"symbols", len(g.symbols),
		"failed", failed,
		"bars", total,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	if failed == len(g.symbols) {
		return fmt.Errorf("all %d symbols failed: %w", failed, errors.Join(results...))
	}
	return nil
}
