package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server and CLI look for the YAML file unless
// VANTAGE_CONFIG points elsewhere.
const DefaultPath = "config/vantage.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the vantage service.
type Config struct {
	Server    Server    `yaml:"server"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
	Backtest  Backtest  `yaml:"backtest"`
	Synthetic Synthetic `yaml:"synthetic"`
	Data      Data      `yaml:"data"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"` // 0 disables gRPC
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Alpaca holds credentials and the market-data endpoint.
type Alpaca struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	DataURL    string `yaml:"data_url"`
	Feed       string `yaml:"feed"`
	Adjustment string `yaml:"adjustment"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds request defaults and the accepted parameter ranges.
type Backtest struct {
	DefaultSymbol    string `yaml:"default_symbol"`
	DefaultWindow    int    `yaml:"default_window"`
	DefaultAltWindow int    `yaml:"default_alt_window"`
	DefaultDays      int    `yaml:"default_days"`
	MinDays          int    `yaml:"min_days"`
	MaxDays          int    `yaml:"max_days"`
	MaxWindow        int    `yaml:"max_window"`
}

// Synthetic parameterises the deterministic demo series.
type Synthetic struct {
	BasePrice    float64 `yaml:"base_price"`
	Drift        float64 `yaml:"drift"`
	WiggleAmp    float64 `yaml:"wiggle_amp"`
	WigglePeriod int     `yaml:"wiggle_period"`
}

// Data selects and tunes the real-data source.
type Data struct {
	RealSource      string        `yaml:"real_source"` // "", alpaca, parquet or sqlite
	DataDir         string        `yaml:"data_dir"`
	SQLitePath      string        `yaml:"sqlite_path"`
	Market          string        `yaml:"market"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Real-data source names accepted in Data.RealSource.
const (
	SourceNone    = ""
	SourceAlpaca  = "alpaca"
	SourceParquet = "parquet"
	SourceSQLite  = "sqlite"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8000,
			GRPCPort:        8001,
			AllowedOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Alpaca: Alpaca{
			Feed:       "iex",
			Adjustment: "split",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Backtest: Backtest{
			DefaultSymbol:    "DUMMY",
			DefaultWindow:    5,
			DefaultAltWindow: 10,
			DefaultDays:      30,
			MinDays:          5,
			MaxDays:          365,
			MaxWindow:        100,
		},
		Synthetic: Synthetic{
			BasePrice:    100.0,
			Drift:        0.0008,
			WiggleAmp:    0.02,
			WigglePeriod: 5,
		},
		Data: Data{
			DataDir:         "data",
			SQLitePath:      "data/vantage.db",
			Market:          "us",
			Timeout:         15 * time.Second,
			MaxAttempts:     3,
			RateLimitPerMin: 200,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns VANTAGE_CONFIG when set, otherwise DefaultPath.
func Path() string {
	if v := os.Getenv("VANTAGE_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over Default(),
// applies environment variable overrides and validates the result. A missing
// file is not an error; the defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Data.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// "none" switches real data off.
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("VANTAGE_REAL_SOURCE"))); v != "" {
		if v == "none" {
			v = SourceNone
		}
		cfg.Data.RealSource = v
	}

	if v := os.Getenv("VANTAGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VANTAGE_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Server.GRPCPort >= 0 && c.Server.GRPCPort < 65536, "server.grpc_port %d out of range", c.Server.GRPCPort)
	check(c.Server.GRPCPort == 0 || c.Server.GRPCPort != c.Server.Port, "server.grpc_port must differ from server.port")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")

	b := c.Backtest
	check(b.MinDays >= 2, "backtest.min_days %d must be >= 2", b.MinDays)
	check(b.MaxDays >= b.MinDays, "backtest.max_days %d must be >= min_days %d", b.MaxDays, b.MinDays)
	check(b.MaxWindow >= 1, "backtest.max_window %d must be >= 1", b.MaxWindow)
	check(b.DefaultDays >= b.MinDays && b.DefaultDays <= b.MaxDays,
		"backtest.default_days %d outside [%d, %d]", b.DefaultDays, b.MinDays, b.MaxDays)
	check(b.DefaultWindow >= 1 && b.DefaultWindow <= b.MaxWindow,
		"backtest.default_window %d outside [1, %d]", b.DefaultWindow, b.MaxWindow)
	check(b.DefaultAltWindow >= 1 && b.DefaultAltWindow <= b.MaxWindow,
		"backtest.default_alt_window %d outside [1, %d]", b.DefaultAltWindow, b.MaxWindow)

	s := c.Synthetic
	check(s.BasePrice > 0, "synthetic.base_price must be positive")
	check(s.WigglePeriod >= 1, "synthetic.wiggle_period %d must be >= 1", s.WigglePeriod)

	switch c.Data.RealSource {
	case SourceNone, SourceAlpaca, SourceParquet, SourceSQLite:
	default:
		errs = append(errs, fmt.Errorf("data.real_source %q: want alpaca, parquet, sqlite or empty", c.Data.RealSource))
	}
	check(c.Data.Market == "us" || c.Data.Market == "cn", "data.market %q: want us or cn", c.Data.Market)
	check(c.Data.MaxAttempts >= 1, "data.max_attempts %d must be >= 1", c.Data.MaxAttempts)

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
