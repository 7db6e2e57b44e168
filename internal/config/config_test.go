package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "monitor", cfg.Mode)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "arbitrage"
	cfg.Symbol.Base = ""
	cfg.Trading.SpreadThreshold = "not-a-number"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "symbol: base")
	assert.Contains(t, msg, "spread_threshold")
	assert.Contains(t, msg, "binance: api_key")
	assert.Contains(t, msg, "chain: rpc_url")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "backtest"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "backtest"`)
}

func TestValidateMinAboveMax(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.MinTradeAmount = "5"
	cfg.Trading.MaxTradeAmount = "1"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_trade_amount must not exceed max_trade_amount")
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "arbitrage"
	cfg.Binance.ApiKey = "k"
	cfg.Binance.SecretKey = "s"
	cfg.Chain.RpcURL = "https://rpc.example.com"
	cfg.Chain.AccountAddress = "0xabc"
	cfg.Chain.EncryptedKeyPath = "/etc/arbot/key.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")

	cfg.Chain.KeyPassword = "hunter2"
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "monitor"
log_level = "debug"

[symbol]
base = "WBTC"
base_decimals = 8

[trading]
spread_threshold = "0.05"

[monitor]
retention_days = 7
archive_interval = "30m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values override defaults; unset fields keep them.
	assert.Equal(t, "WBTC", cfg.Symbol.Base)
	assert.Equal(t, 8, cfg.Symbol.BaseDecimals)
	assert.Equal(t, "USDC", cfg.Symbol.Quote)
	assert.Equal(t, "0.05", cfg.Trading.SpreadThreshold)
	assert.Equal(t, "1", cfg.Trading.MaxTradeAmount)
	assert.Equal(t, 7, cfg.Monitor.RetentionDays)
	assert.Equal(t, 30*time.Minute, cfg.Monitor.ArchiveInterval.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "monitor"`), 0o600))

	t.Setenv("ARBOT_MODE", "arbitrage")
	t.Setenv("ARBOT_BINANCE_API_KEY", "env-key")
	t.Setenv("ARBOT_TRADING_SPREAD_THRESHOLD", "0.01")
	t.Setenv("ARBOT_POSTGRES_PORT", "5433")
	t.Setenv("ARBOT_REDIS_ENABLED", "true")
	t.Setenv("ARBOT_MONITOR_ARCHIVE_INTERVAL", "90s")
	t.Setenv("ARBOT_NOTIFY_EVENTS", "fatal_error, order_filled")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "arbitrage", cfg.Mode)
	assert.Equal(t, "env-key", cfg.Binance.ApiKey)
	assert.Equal(t, "0.01", cfg.Trading.SpreadThreshold)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Monitor.ArchiveInterval.Duration)
	assert.Equal(t, []string{"fatal_error", "order_filled"}, cfg.Notify.Events)
}

func TestTradingDecimals(t *testing.T) {
	tr := TradingConfig{
		SpreadThreshold: "0.02",
		MaxTradeAmount:  "1.5",
		MinTradeAmount:  "0.1",
	}
	threshold, maxAmount, minAmount, err := tr.Decimals()
	require.NoError(t, err)
	assert.Equal(t, "0.02", threshold.String())
	assert.Equal(t, "1.5", maxAmount.String())
	assert.Equal(t, "0.1", minAmount.String())

	tr.MaxTradeAmount = "lots"
	_, _, _, err = tr.Decimals()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_trade_amount")
}
