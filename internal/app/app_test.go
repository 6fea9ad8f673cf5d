package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage/internal/backtest"
	"vantage/internal/config"
	"vantage/internal/domain"
	"vantage/internal/util"
)

var now = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

func testCalendar() *util.Calendar {
	return util.NewCalendar(time.UTC, func() time.Time { return now })
}

func TestConversions(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, backtest.DefaultDefaults(), Defaults(cfg))
	assert.Equal(t, backtest.DefaultLimits(), Limits(cfg))

	p := SyntheticParams(cfg)
	assert.Equal(t, 100.0, p.BasePrice)
	assert.Equal(t, 5, p.WigglePeriod)

	cfg.Alpaca.Feed = "sip"
	cfg.Data.Timeout = 3 * time.Second
	opts := FetchOptions(cfg)
	assert.Equal(t, "sip", opts.Feed)
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, cfg.Data.MaxAttempts, opts.MaxAttempts)
}

func TestNewServiceSyntheticOnly(t *testing.T) {
	svc, closer, err := NewService(config.Default(), testCalendar(), nil, nil)
	require.NoError(t, err)
	defer closer.Close()
	assert.False(t, svc.HasRealProvider())

	res, err := svc.Run(context.Background(), Defaults(config.Default()).Request())
	require.NoError(t, err)
	assert.Equal(t, 30, res.NumPoints)
}

func TestNewServiceAlpacaNeedsCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Data.RealSource = config.SourceAlpaca
	_, _, err := NewService(cfg, testCalendar(), nil, nil)
	assert.Error(t, err)

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "k", "s"
	svc, _, err := NewService(cfg, testCalendar(), nil, nil)
	require.NoError(t, err)
	assert.True(t, svc.HasRealProvider())
}

func TestNewServiceStoreSources(t *testing.T) {
	for _, kind := range []string{config.SourceParquet, config.SourceSQLite} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.Default()
			cfg.Data.RealSource = kind
			cfg.Data.DataDir = dir
			cfg.Data.SQLitePath = filepath.Join(dir, "db", "vantage.db")

			st, closer, err := OpenStore(cfg, kind)
			require.NoError(t, err)
			var bars []domain.Bar
			for i := range 40 {
				bars = append(bars, domain.Bar{
					Symbol:    "SPY",
					Timestamp: now.AddDate(0, 0, -39+i),
					Close:     100 + float64(i),
				})
			}
			require.NoError(t, st.WriteBars(context.Background(), domain.MarketUS, bars))
			require.NoError(t, closer.Close())

			svc, closer, err := NewService(cfg, testCalendar(), nil, nil)
			require.NoError(t, err)
			defer closer.Close()
			require.True(t, svc.HasRealProvider())

			req := Defaults(cfg).Request()
			req.Symbol = "spy"
			req.UseReal = true
			res, err := svc.Run(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, 30, res.NumPoints)
			assert.Equal(t, 139.0, res.Prices[29].Close)
		})
	}
}

func TestOpenStoreUnknown(t *testing.T) {
	_, _, err := OpenStore(config.Default(), "csv")
	assert.Error(t, err)
}
