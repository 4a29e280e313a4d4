// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// duration wraps time.Duration so TOML strings like "2s" decode directly.
type duration struct {
	time.Duration
}

// UnmarshalText implements TOML decoding for duration.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	Venues     VenuesConfig     `toml:"venues"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Risk       RiskConfig       `toml:"risk"`
	Router     RouterConfig     `toml:"router"`
	Execution  ExecutionConfig  `toml:"execution"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Variants   []VariantConfig  `toml:"variants"`
	Testing    TestingConfig    `toml:"testing"`
	Allocation AllocationConfig `toml:"allocation"`
	Engine     EngineConfig     `toml:"engine"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
}

// VenuesConfig names the tracked exchanges and the per-venue rate budget.
type VenuesConfig struct {
	Names []string `toml:"names"`
	// RateLimitPerSec is the outbound request budget per venue per second.
	RateLimitPerSec int `toml:"rate_limit_per_sec"`
	// PaperFeePct and PaperSlippagePct shape simulated fills in paper mode.
	PaperFeePct      float64 `toml:"paper_fee_pct"`
	PaperSlippagePct float64 `toml:"paper_slippage_pct"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RiskConfig holds the risk gate parameters.
type RiskConfig struct {
	MinSpreadPct       float64 `toml:"min_spread_pct"`
	RiskThreshold      float64 `toml:"risk_threshold"`
	PositionSizeCapUSD float64 `toml:"position_size_cap_usd"`
}

// RouterConfig holds the order router parameters.
type RouterConfig struct {
	LargeOrderThreshold float64 `toml:"large_order_threshold"`
	EnableVWAP          bool    `toml:"enable_vwap"`
	EnableTWAP          bool    `toml:"enable_twap"`
	TWAPSlices          int     `toml:"twap_slices"`
	TWAPIntervalMs      int64   `toml:"twap_interval_ms"`
	MinOrderSize        float64 `toml:"min_order_size"`
	SlippageTolerance   float64 `toml:"slippage_tolerance"`
	MaxDepthLevels      int     `toml:"max_depth_levels"`
	MaxSlippagePct      float64 `toml:"max_slippage_pct"`
}

// ExecutionConfig holds the execution protocol parameters.
type ExecutionConfig struct {
	MaxSellRetries    int      `toml:"max_sell_retries"`
	RetryDelay        duration `toml:"retry_delay"`
	MaxInFlightTrades int64    `toml:"max_in_flight_trades"`
}

// LedgerConfig seeds the accounting ledger.
type LedgerConfig struct {
	InitialQuoteUSD float64 `toml:"initial_quote_usd"`
}

// VariantConfig is one named A/B parameter set.
type VariantConfig struct {
	Name               string  `toml:"name"`
	MinSpreadPct       float64 `toml:"min_spread_pct"`
	RiskThreshold      float64 `toml:"risk_threshold"`
	PositionSizeCapUSD float64 `toml:"position_size_cap_usd"`
}

// TestingConfig holds the A/B harness parameters.
type TestingConfig struct {
	RotationInterval duration `toml:"rotation_interval"`
	MinSampleSize    int64    `toml:"min_sample_size"`
}

// AllocationConfig holds the balance predictor parameters.
type AllocationConfig struct {
	ReserveUSD            float64 `toml:"reserve_usd"`
	MinBalancePerVenueUSD float64 `toml:"min_balance_per_venue_usd"`
	MaxBalancePerVenueUSD float64 `toml:"max_balance_per_venue_usd"`
	MinKeepBalanceUSD     float64 `toml:"min_keep_balance_usd"`
	MinTransferUSD        float64 `toml:"min_transfer_usd"`
	RebalanceThresholdPct float64 `toml:"rebalance_threshold_pct"`
	LookbackDays          int     `toml:"lookback_days"`
}

// EngineConfig holds the decision loop parameters.
type EngineConfig struct {
	AutoExecute    bool `toml:"auto_execute"`
	OrderBookDepth int  `toml:"order_book_depth"`
	RecentLimit    int  `toml:"recent_limit"`
}

// ArchiveConfig holds the ledger archival parameters.
type ArchiveConfig struct {
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns the built-in configuration, suitable for paper mode with
// no external services beyond Redis and Postgres.
func Defaults() Config {
	return Config{
		Mode:     "paper",
		LogLevel: "info",
		Venues: VenuesConfig{
			Names:            []string{"binance", "coinbase", "kraken", "kucoin"},
			RateLimitPerSec:  10,
			PaperFeePct:      0.1,
			PaperSlippagePct: 0.05,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "arbot",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Risk: RiskConfig{
			MinSpreadPct:       0.3,
			RiskThreshold:      0.5,
			PositionSizeCapUSD: 1000,
		},
		Router: RouterConfig{
			LargeOrderThreshold: 10,
			EnableVWAP:          true,
			EnableTWAP:          true,
			TWAPSlices:          4,
			TWAPIntervalMs:      5000,
			MinOrderSize:        0.001,
			SlippageTolerance:   0.5,
			MaxDepthLevels:      20,
			MaxSlippagePct:      2.0,
		},
		Execution: ExecutionConfig{
			MaxSellRetries:    3,
			RetryDelay:        duration{2 * time.Second},
			MaxInFlightTrades: 4,
		},
		Ledger: LedgerConfig{
			InitialQuoteUSD: 10000,
		},
		Variants: []VariantConfig{
			{Name: "conservative", MinSpreadPct: 0.5, RiskThreshold: 0.6, PositionSizeCapUSD: 500},
			{Name: "baseline", MinSpreadPct: 0.3, RiskThreshold: 0.5, PositionSizeCapUSD: 1000},
			{Name: "aggressive", MinSpreadPct: 0.2, RiskThreshold: 0.4, PositionSizeCapUSD: 1500},
		},
		Testing: TestingConfig{
			RotationInterval: duration{time.Hour},
			MinSampleSize:    10,
		},
		Allocation: AllocationConfig{
			ReserveUSD:            500,
			MinBalancePerVenueUSD: 100,
			MaxBalancePerVenueUSD: 5000,
			MinKeepBalanceUSD:     50,
			MinTransferUSD:        25,
			RebalanceThresholdPct: 20,
			LookbackDays:          30,
		},
		Engine: EngineConfig{
			AutoExecute:    true,
			OrderBookDepth: 20,
			RecentLimit:    100,
		},
		Archive: ArchiveConfig{
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"stranded_inventory", "trade_fallback", "trade_failed", "rebalance_suggested"},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"paper":  true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, paper, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Venues.Names) < 2 {
		errs = append(errs, "venues: at least two venues are required for cross-venue arbitrage")
	}
	if c.Venues.RateLimitPerSec < 1 {
		errs = append(errs, "venues: rate_limit_per_sec must be >= 1")
	}

	// Live mode needs durable stores; paper mode runs fully in memory.
	if strings.ToLower(c.Mode) != "paper" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if c.Risk.MinSpreadPct < 0 {
		errs = append(errs, "risk: min_spread_pct must be >= 0")
	}
	if c.Risk.RiskThreshold < 0 || c.Risk.RiskThreshold > 1 {
		errs = append(errs, fmt.Sprintf("risk: risk_threshold must be in [0,1], got %g", c.Risk.RiskThreshold))
	}
	if c.Risk.PositionSizeCapUSD <= 0 {
		errs = append(errs, "risk: position_size_cap_usd must be > 0")
	}

	if c.Router.TWAPSlices < 2 {
		errs = append(errs, "router: twap_slices must be >= 2")
	}
	if c.Router.MinOrderSize <= 0 {
		errs = append(errs, "router: min_order_size must be > 0")
	}

	if c.Execution.MaxSellRetries < 1 {
		errs = append(errs, "execution: max_sell_retries must be >= 1")
	}
	if c.Execution.MaxInFlightTrades < 1 {
		errs = append(errs, "execution: max_in_flight_trades must be >= 1")
	}

	if c.Ledger.InitialQuoteUSD <= 0 {
		errs = append(errs, "ledger: initial_quote_usd must be > 0")
	}

	if len(c.Variants) == 0 {
		errs = append(errs, "variants: at least one variant is required")
	}
	seen := make(map[string]bool, len(c.Variants))
	for i, v := range c.Variants {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("variants[%d]: name must not be empty", i))
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("variants: duplicate name %q", v.Name))
		}
		seen[v.Name] = true

		// Variant params replace the risk section at runtime, so they carry
		// the same bounds.
		if v.MinSpreadPct < 0 {
			errs = append(errs, fmt.Sprintf("variants[%d]: min_spread_pct must be >= 0", i))
		}
		if v.RiskThreshold < 0 || v.RiskThreshold > 1 {
			errs = append(errs, fmt.Sprintf("variants[%d]: risk_threshold must be in [0,1], got %g", i, v.RiskThreshold))
		}
		if v.PositionSizeCapUSD <= 0 {
			errs = append(errs, fmt.Sprintf("variants[%d]: position_size_cap_usd must be > 0", i))
		}
	}

	if c.Allocation.MinBalancePerVenueUSD > c.Allocation.MaxBalancePerVenueUSD {
		errs = append(errs, "allocation: min_balance_per_venue_usd must not exceed max_balance_per_venue_usd")
	}
	if c.Allocation.ReserveUSD < 0 {
		errs = append(errs, "allocation: reserve_usd must be >= 0")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
