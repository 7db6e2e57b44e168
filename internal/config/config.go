// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Symbol   SymbolConfig   `toml:"symbol"`
	Binance  BinanceConfig  `toml:"binance"`
	Chain    ChainConfig    `toml:"chain"`
	Trading  TradingConfig  `toml:"trading"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SymbolConfig identifies the traded pair. Addresses are on-chain contract
// addresses; they are empty for assets that exist only on the CEX side.
type SymbolConfig struct {
	Base          string `toml:"base"`
	BaseAddress   string `toml:"base_address"`
	BaseDecimals  int    `toml:"base_decimals"`
	Quote         string `toml:"quote"`
	QuoteAddress  string `toml:"quote_address"`
	QuoteDecimals int    `toml:"quote_decimals"`
}

// BinanceConfig holds CEX API credentials and endpoints.
type BinanceConfig struct {
	ApiKey    string `toml:"api_key"`
	SecretKey string `toml:"secret_key"`
	RestHost  string `toml:"rest_host"`
	WsHost    string `toml:"ws_host"`
}

// ChainConfig holds the on-chain venue parameters: the node endpoint, the
// quote aggregator API, and the signing key. Exactly one of SignerKey or
// EncryptedKeyPath must be provided for trading.
type ChainConfig struct {
	RpcURL           string `toml:"rpc_url"`
	QuoteHost        string `toml:"quote_host"`
	ChainID          int64  `toml:"chain_id"`
	AccountAddress   string `toml:"account_address"`
	SignerKey        string `toml:"signer_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// TradingConfig holds the decision-policy parameters. The decimal values are
// kept as strings so they survive TOML round-trips without float rounding;
// use Decimals to obtain parsed values after validation.
type TradingConfig struct {
	SpreadStrategy  string `toml:"spread_strategy"`
	AmountStrategy  string `toml:"amount_strategy"`
	SpreadThreshold string `toml:"spread_threshold"`
	MaxTradeAmount  string `toml:"max_trade_amount"`
	MinTradeAmount  string `toml:"min_trade_amount"`
}

// Decimals parses the decimal trading parameters. Call Validate first; it
// reports parse failures with context.
func (t TradingConfig) Decimals() (threshold, maxAmount, minAmount decimal.Decimal, err error) {
	if threshold, err = decimal.NewFromString(t.SpreadThreshold); err != nil {
		return threshold, maxAmount, minAmount, fmt.Errorf("spread_threshold: %w", err)
	}
	if maxAmount, err = decimal.NewFromString(t.MaxTradeAmount); err != nil {
		return threshold, maxAmount, minAmount, fmt.Errorf("max_trade_amount: %w", err)
	}
	if minAmount, err = decimal.NewFromString(t.MinTradeAmount); err != nil {
		return threshold, maxAmount, minAmount, fmt.Errorf("min_trade_amount: %w", err)
	}
	return threshold, maxAmount, minAmount, nil
}

// PostgresConfig holds connection parameters for the spread log database.
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

// RedisConfig holds connection parameters for the latest-quote cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// S3Config holds S3-compatible object storage parameters for the spread
// history archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MonitorConfig holds spread-monitoring parameters.
type MonitorConfig struct {
	// RetentionDays is how long spread rows stay in Postgres before the
	// archiver moves them to blob storage.
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "5m" decode directly.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Symbol: SymbolConfig{
			Base:          "ETH",
			BaseDecimals:  18,
			Quote:         "USDC",
			QuoteDecimals: 6,
		},
		Binance: BinanceConfig{
			RestHost: "https://api.binance.com",
			WsHost:   "wss://stream.binance.com:9443",
		},
		Chain: ChainConfig{
			QuoteHost: "https://api.0x.org",
			ChainID:   1,
		},
		Trading: TradingConfig{
			SpreadStrategy:  "simple",
			AmountStrategy:  "simple",
			SpreadThreshold: "0.02",
			MaxTradeAmount:  "1",
			MinTradeAmount:  "0.01",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "arbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled: false,
			Region:  "us-east-1",
		},
		Monitor: MonitorConfig{
			RetentionDays:   90,
			ArchiveInterval: duration{6 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_detected", "order_filled", "fatal_error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"arbitrage": true,
	"monitor":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. The process must not start
// when validation fails.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: arbitrage, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Symbol
	if c.Symbol.Base == "" {
		errs = append(errs, "symbol: base must not be empty")
	}
	if c.Symbol.Quote == "" {
		errs = append(errs, "symbol: quote must not be empty")
	}
	if c.Symbol.BaseDecimals < 0 {
		errs = append(errs, "symbol: base_decimals must be >= 0")
	}
	if c.Symbol.QuoteDecimals < 0 {
		errs = append(errs, "symbol: quote_decimals must be >= 0")
	}

	// Trading policy parameters.
	threshold, maxAmount, minAmount, err := c.Trading.Decimals()
	if err != nil {
		errs = append(errs, "trading: "+err.Error())
	} else {
		if threshold.Sign() < 0 {
			errs = append(errs, "trading: spread_threshold must be >= 0")
		}
		if maxAmount.Sign() <= 0 {
			errs = append(errs, "trading: max_trade_amount must be > 0")
		}
		if minAmount.Sign() < 0 {
			errs = append(errs, "trading: min_trade_amount must be >= 0")
		}
		if minAmount.GreaterThan(maxAmount) {
			errs = append(errs, "trading: min_trade_amount must not exceed max_trade_amount")
		}
	}
	if c.Trading.SpreadStrategy == "" {
		errs = append(errs, "trading: spread_strategy must not be empty")
	}
	if c.Trading.AmountStrategy == "" {
		errs = append(errs, "trading: amount_strategy must not be empty")
	}

	// Venue credentials are only required when we will actually trade.
	if strings.ToLower(c.Mode) == "arbitrage" {
		if c.Binance.ApiKey == "" {
			errs = append(errs, "binance: api_key is required for arbitrage mode")
		}
		if c.Binance.SecretKey == "" {
			errs = append(errs, "binance: secret_key is required for arbitrage mode")
		}
		if c.Chain.RpcURL == "" {
			errs = append(errs, "chain: rpc_url is required for arbitrage mode")
		}
		if c.Chain.AccountAddress == "" {
			errs = append(errs, "chain: account_address is required for arbitrage mode")
		}
		if c.Chain.SignerKey == "" && c.Chain.EncryptedKeyPath == "" {
			errs = append(errs, "chain: either signer_key or encrypted_key_path must be set for arbitrage mode")
		}
		if c.Chain.EncryptedKeyPath != "" && c.Chain.KeyPassword == "" {
			errs = append(errs, "chain: key_password is required when encrypted_key_path is set")
		}
	}
	if c.Binance.RestHost == "" {
		errs = append(errs, "binance: rest_host must not be empty")
	}
	if c.Binance.WsHost == "" {
		errs = append(errs, "binance: ws_host must not be empty")
	}
	if c.Chain.QuoteHost == "" {
		errs = append(errs, "chain: quote_host must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}

	// Postgres backs the monitor mode's spread log.
	if strings.ToLower(c.Mode) == "monitor" {
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
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Monitor.RetentionDays < 1 {
			errs = append(errs, "monitor: retention_days must be >= 1")
		}
		if c.Monitor.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "monitor: archive_interval must be positive")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
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

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
