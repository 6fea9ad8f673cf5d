// Package backtest runs the demo backtest: it validates a request, pulls a
// price series, runs the primary and alternate SMA rules, measures risk on the
// primary curve and assembles the result record.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"vantage/internal/domain"
	"vantage/internal/prices"
	"vantage/internal/risk"
	"vantage/internal/strategy"
	"vantage/internal/strategy/builtins"
	"vantage/internal/util"
)

// maxSymbolLen bounds the free-form symbol string.
const maxSymbolLen = 16

// Request holds the parameters of one backtest.
type Request struct {
	Symbol    string
	Window    int
	AltWindow int
	Days      int
	UseReal   bool
}

// Defaults fill in parameters a caller omits.
type Defaults struct {
	Symbol    string
	Window    int
	AltWindow int
	Days      int
}

// DefaultDefaults returns DUMMY with windows 5 and 10 over 30 days.
func DefaultDefaults() Defaults {
	return Defaults{Symbol: "DUMMY", Window: 5, AltWindow: 10, Days: 30}
}

// Request returns a synthetic-data request populated from d.
func (d Defaults) Request() Request {
	return Request{Symbol: d.Symbol, Window: d.Window, AltWindow: d.AltWindow, Days: d.Days}
}

// Limits are the accepted parameter ranges. Values outside them are
// rejected, never clamped.
type Limits struct {
	MinDays   int
	MaxDays   int
	MaxWindow int
}

// DefaultLimits returns days in [5, 365] and windows in [1, 100].
func DefaultLimits() Limits {
	return Limits{MinDays: 5, MaxDays: 365, MaxWindow: 100}
}

// Recorder receives outcome counts. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveBacktest(source, result string)
	ObserveFetchFailure(source string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBacktest(string, string) {}
func (nopRecorder) ObserveFetchFailure(string)     {}

// Service wires a synthetic provider, an optional real provider and the
// strategy and risk computations together. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	synthetic prices.Provider
	real      prices.Provider
	limits    Limits
	rec       Recorder
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRealProvider enables UseReal requests against p.
func WithRealProvider(p prices.Provider) Option {
	return func(s *Service) { s.real = p }
}

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a Service that serves synthetic series from synthetic.
func NewService(synthetic prices.Provider, opts ...Option) *Service {
	s := &Service{
		synthetic: synthetic,
		limits:    DefaultLimits(),
		rec:       nopRecorder{},
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "backtest")
	return s
}

// Limits returns the ranges the service enforces.
func (s *Service) Limits() Limits { return s.limits }

// HasRealProvider reports whether UseReal requests can be served.
func (s *Service) HasRealProvider() bool { return s.real != nil }

// Validate checks req against the service limits.
func (s *Service) Validate(req Request) error {
	sym := strings.TrimSpace(req.Symbol)
	switch {
	case sym == "":
		return fmt.Errorf("%w: symbol must not be empty", domain.ErrInvalidParameter)
	case len(sym) > maxSymbolLen:
		return fmt.Errorf("%w: symbol %q longer than %d characters", domain.ErrInvalidParameter, sym, maxSymbolLen)
	case req.Days < s.limits.MinDays || req.Days > s.limits.MaxDays:
		return fmt.Errorf("%w: days %d outside [%d, %d]",
			domain.ErrInvalidParameter, req.Days, s.limits.MinDays, s.limits.MaxDays)
	case req.Window < 1 || req.Window > s.limits.MaxWindow:
		return fmt.Errorf("%w: window %d outside [1, %d]",
			domain.ErrInvalidParameter, req.Window, s.limits.MaxWindow)
	case req.AltWindow < 1 || req.AltWindow > s.limits.MaxWindow:
		return fmt.Errorf("%w: alt_window %d outside [1, %d]",
			domain.ErrInvalidParameter, req.AltWindow, s.limits.MaxWindow)
	case req.UseReal && s.real == nil:
		return fmt.Errorf("%w: use_real requested but no real data source is configured", domain.ErrInvalidParameter)
	}
	return nil
}

// Run executes one backtest.
func (s *Service) Run(ctx context.Context, req Request) (*domain.BacktestResult, error) {
	provider := s.synthetic
	if req.UseReal && s.real != nil {
		provider = s.real
	}
	source := provider.Name()

	start := time.Now()
	res, err := s.run(ctx, provider, req)
	if err != nil {
		s.rec.ObserveBacktest(source, kind(err))
		s.log.Warn("backtest failed", "symbol", req.Symbol, "source", source, "error", err)
		return nil, err
	}
	s.rec.ObserveBacktest(source, "ok")
	s.log.Debug("backtest done",
		"symbol", res.Symbol,
		"source", source,
		"points", res.NumPoints,
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, provider prices.Provider, req Request) (*domain.BacktestResult, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	series, err := provider.Series(ctx, symbol, req.Days)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			s.rec.ObserveFetchFailure(provider.Name())
		}
		return nil, fmt.Errorf("fetching %s series for %s: %w", provider.Name(), symbol, err)
	}
	closes := domain.Closes(series)

	primary, err := builtins.RunSMA(closes, req.Window)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", req.Window, err)
	}
	alt, err := builtins.RunSMA(closes, req.AltWindow)
	if err != nil {
		return nil, fmt.Errorf("alt_window %d: %w", req.AltWindow, err)
	}
	m := risk.Analyze(primary.Equity)

	return &domain.BacktestResult{
		Symbol:                  symbol,
		Window:                  req.Window,
		AltWindow:               req.AltWindow,
		Days:                    req.Days,
		BuyAndHoldReturnPct:     strategy.BuyAndHoldPct(closes),
		SMAStrategyReturnPct:    primary.TotalReturnPct,
		AltSMAStrategyReturnPct: alt.TotalReturnPct,
		NumPoints:               len(series),
		Prices:                  series,
		EquityCurve:             EquityPoints(primary.Equity),
		MaxDrawdownPct:          m.MaxDrawdownPct,
		VolatilityPct:           m.VolatilityPct,
		SharpeLike:              m.SharpeLike,
	}, nil
}

// EquityPoints numbers an equity curve from step 1 and rounds each value to
// 4 decimal places.
func EquityPoints(equity []float64) []domain.EquityPoint {
	return lo.Map(equity, func(v float64, i int) domain.EquityPoint {
		return domain.EquityPoint{Step: i + 1, Equity: util.Round(v, 4)}
	})
}

// kind labels err for metrics.
func kind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
