package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/arbcore/arbot/internal/blob/s3"
	"github.com/arbcore/arbot/internal/cache/redis"
	"github.com/arbcore/arbot/internal/config"
	"github.com/arbcore/arbot/internal/crypto"
	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
	"github.com/arbcore/arbot/internal/notify"
	"github.com/arbcore/arbot/internal/store/postgres"
	"github.com/arbcore/arbot/internal/venue/binance"
	"github.com/arbcore/arbot/internal/venue/zeroex"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Symbol domain.Symbol
	Venues []exchange.Exchange

	SpreadStore domain.SpreadStore
	QuoteCache  domain.QuoteCache
	BlobWriter  *s3blob.Writer

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Symbol: symbolFromConfig(cfg.Symbol)}

	// --- PostgreSQL spread log (monitor mode only) ---
	if mode == "monitor" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.SpreadStore = postgres.NewSpreadStore(pgClient)
	}

	// --- Redis latest-quote cache (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
	}

	// --- S3 spread archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscord(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Venues ---
	// The signing key is only resolved when we will actually trade; monitor
	// mode runs the venues credential-free.
	var signerKey string
	if mode == "arbitrage" {
		key, err := crypto.LoadSignerKey(crypto.KeyConfig{
			RawKey:           cfg.Chain.SignerKey,
			EncryptedKeyPath: cfg.Chain.EncryptedKeyPath,
			Password:         cfg.Chain.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer key: %w", err)
		}
		signerKey = key
	}

	cex, err := binance.New(ctx, binance.Config{
		ApiKey:    venueCredential(mode, cfg.Binance.ApiKey),
		SecretKey: venueCredential(mode, cfg.Binance.SecretKey),
		RestHost:  cfg.Binance.RestHost,
		WsHost:    cfg.Binance.WsHost,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: binance: %w", err)
	}

	dex, err := zeroex.New(ctx, zeroex.Config{
		RpcURL:       cfg.Chain.RpcURL,
		QuoteHost:    cfg.Chain.QuoteHost,
		ChainID:      cfg.Chain.ChainID,
		Account:      cfg.Chain.AccountAddress,
		SignerKeyHex: signerKey,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: zeroex: %w", err)
	}

	deps.Venues = []exchange.Exchange{cex, dex}

	return deps, cleanup, nil
}

// venueCredential blanks credentials outside arbitrage mode so observation
// never touches authenticated endpoints.
func venueCredential(mode, value string) string {
	if mode != "arbitrage" {
		return ""
	}
	return value
}

// symbolFromConfig builds the traded pair from configuration.
func symbolFromConfig(sc config.SymbolConfig) domain.Symbol {
	return domain.Symbol{
		Base: domain.Token{
			Name:     sc.Base,
			Address:  sc.BaseAddress,
			Decimals: sc.BaseDecimals,
		},
		Quote: domain.Token{
			Name:     sc.Quote,
			Address:  sc.QuoteAddress,
			Decimals: sc.QuoteDecimals,
		},
	}
}
