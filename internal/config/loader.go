package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML file at path, merges it over the built-in defaults and
// applies ARBOT_* environment overrides. An empty path skips the file and
// uses defaults plus environment only. The caller validates afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present; missing files are fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* variables so operators can
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")

	setStringSlice(&cfg.Venues.Names, "ARBOT_VENUES")
	setInt(&cfg.Venues.RateLimitPerSec, "ARBOT_VENUES_RATE_LIMIT_PER_SEC")

	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "ARBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBOT_S3_FORCE_PATH_STYLE")

	setFloat64(&cfg.Risk.MinSpreadPct, "ARBOT_RISK_MIN_SPREAD_PCT")
	setFloat64(&cfg.Risk.RiskThreshold, "ARBOT_RISK_THRESHOLD")
	setFloat64(&cfg.Risk.PositionSizeCapUSD, "ARBOT_RISK_POSITION_SIZE_CAP_USD")

	setFloat64(&cfg.Router.LargeOrderThreshold, "ARBOT_ROUTER_LARGE_ORDER_THRESHOLD")
	setBool(&cfg.Router.EnableVWAP, "ARBOT_ROUTER_ENABLE_VWAP")
	setBool(&cfg.Router.EnableTWAP, "ARBOT_ROUTER_ENABLE_TWAP")
	setInt(&cfg.Router.TWAPSlices, "ARBOT_ROUTER_TWAP_SLICES")
	setInt64(&cfg.Router.TWAPIntervalMs, "ARBOT_ROUTER_TWAP_INTERVAL_MS")

	setInt(&cfg.Execution.MaxSellRetries, "ARBOT_EXECUTION_MAX_SELL_RETRIES")
	setDuration(&cfg.Execution.RetryDelay, "ARBOT_EXECUTION_RETRY_DELAY")
	setInt64(&cfg.Execution.MaxInFlightTrades, "ARBOT_EXECUTION_MAX_IN_FLIGHT_TRADES")

	setFloat64(&cfg.Ledger.InitialQuoteUSD, "ARBOT_LEDGER_INITIAL_QUOTE_USD")

	setDuration(&cfg.Testing.RotationInterval, "ARBOT_TESTING_ROTATION_INTERVAL")
	setInt64(&cfg.Testing.MinSampleSize, "ARBOT_TESTING_MIN_SAMPLE_SIZE")

	setBool(&cfg.Engine.AutoExecute, "ARBOT_ENGINE_AUTO_EXECUTE")

	setBool(&cfg.Server.Enabled, "ARBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBOT_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")
}

// Typed env-var helpers. Each mutates the target only when the variable is
// present and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
