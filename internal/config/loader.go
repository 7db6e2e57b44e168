package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject credentials at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Symbol ──
	setStr(&cfg.Symbol.Base, "ARBOT_SYMBOL_BASE")
	setStr(&cfg.Symbol.BaseAddress, "ARBOT_SYMBOL_BASE_ADDRESS")
	setInt(&cfg.Symbol.BaseDecimals, "ARBOT_SYMBOL_BASE_DECIMALS")
	setStr(&cfg.Symbol.Quote, "ARBOT_SYMBOL_QUOTE")
	setStr(&cfg.Symbol.QuoteAddress, "ARBOT_SYMBOL_QUOTE_ADDRESS")
	setInt(&cfg.Symbol.QuoteDecimals, "ARBOT_SYMBOL_QUOTE_DECIMALS")

	// ── Binance ──
	setStr(&cfg.Binance.ApiKey, "ARBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.SecretKey, "ARBOT_BINANCE_SECRET_KEY")
	setStr(&cfg.Binance.RestHost, "ARBOT_BINANCE_REST_HOST")
	setStr(&cfg.Binance.WsHost, "ARBOT_BINANCE_WS_HOST")

	// ── Chain ──
	setStr(&cfg.Chain.RpcURL, "ARBOT_CHAIN_RPC_URL")
	setStr(&cfg.Chain.QuoteHost, "ARBOT_CHAIN_QUOTE_HOST")
	setInt64(&cfg.Chain.ChainID, "ARBOT_CHAIN_ID")
	setStr(&cfg.Chain.AccountAddress, "ARBOT_CHAIN_ACCOUNT_ADDRESS")
	setStr(&cfg.Chain.SignerKey, "ARBOT_CHAIN_SIGNER_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "ARBOT_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "ARBOT_CHAIN_KEY_PASSWORD")

	// ── Trading ──
	setStr(&cfg.Trading.SpreadStrategy, "ARBOT_TRADING_SPREAD_STRATEGY")
	setStr(&cfg.Trading.AmountStrategy, "ARBOT_TRADING_AMOUNT_STRATEGY")
	setStr(&cfg.Trading.SpreadThreshold, "ARBOT_TRADING_SPREAD_THRESHOLD")
	setStr(&cfg.Trading.MaxTradeAmount, "ARBOT_TRADING_MAX_TRADE_AMOUNT")
	setStr(&cfg.Trading.MinTradeAmount, "ARBOT_TRADING_MIN_TRADE_AMOUNT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "ARBOT_S3_FORCE_PATH_STYLE")

	// ── Monitor ──
	setInt(&cfg.Monitor.RetentionDays, "ARBOT_MONITOR_RETENTION_DAYS")
	setDuration(&cfg.Monitor.ArchiveInterval, "ARBOT_MONITOR_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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
