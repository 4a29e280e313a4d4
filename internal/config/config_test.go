package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Venues.Names = []string{"binance"}
	cfg.Risk.RiskThreshold = 1.5
	cfg.Router.TWAPSlices = 1

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "config validation failed")
	require.Contains(t, msg, `unknown mode "turbo"`)
	require.Contains(t, msg, "at least two venues")
	require.Contains(t, msg, "risk_threshold")
	require.Contains(t, msg, "twap_slices")
}

func TestValidatePaperModeSkipsDurableStores(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "paper"
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Redis.Addr = ""
	require.NoError(t, cfg.Validate())

	cfg.Mode = "run"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres")
	require.Contains(t, err.Error(), "redis")
}

func TestValidateDuplicateVariantNames(t *testing.T) {
	cfg := Defaults()
	cfg.Variants = append(cfg.Variants, VariantConfig{Name: "baseline"})
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `duplicate name "baseline"`)
}

func TestValidateVariantParamBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Variants = []VariantConfig{
		{Name: "loose", MinSpreadPct: -0.1, RiskThreshold: 1.5, PositionSizeCapUSD: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "variants[0]: min_spread_pct must be >= 0")
	require.Contains(t, msg, "variants[0]: risk_threshold must be in [0,1]")
	require.Contains(t, msg, "variants[0]: position_size_cap_usd must be > 0")
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbot.toml")
	body := strings.Join([]string{
		`mode = "run"`,
		`log_level = "debug"`,
		``,
		`[venues]`,
		`names = ["binance", "okx"]`,
		``,
		`[testing]`,
		`rotation_interval = "30m"`,
		``,
		`[execution]`,
		`retry_delay = "5s"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "run", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"binance", "okx"}, cfg.Venues.Names)
	require.Equal(t, 30*time.Minute, cfg.Testing.RotationInterval.Duration)
	require.Equal(t, 5*time.Second, cfg.Execution.RetryDelay.Duration)
	// Untouched sections keep their defaults.
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARBOT_MODE", "server")
	t.Setenv("ARBOT_VENUES", "binance, kraken ,okx")
	t.Setenv("ARBOT_RISK_MIN_SPREAD_PCT", "0.45")
	t.Setenv("ARBOT_SERVER_PORT", "9090")
	t.Setenv("ARBOT_ENGINE_AUTO_EXECUTE", "false")
	t.Setenv("ARBOT_EXECUTION_RETRY_DELAY", "750ms")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "server", cfg.Mode)
	require.Equal(t, []string{"binance", "kraken", "okx"}, cfg.Venues.Names)
	require.Equal(t, 0.45, cfg.Risk.MinSpreadPct)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Engine.AutoExecute)
	require.Equal(t, 750*time.Millisecond, cfg.Execution.RetryDelay.Duration)
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("ARBOT_SERVER_PORT", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
