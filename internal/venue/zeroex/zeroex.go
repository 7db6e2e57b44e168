// Package zeroex implements an on-chain venue adapter backed by a 0x-style
// swap aggregator API. Prices come from polled firm quotes sized to the
// configured trade amount; swaps are executed by signing and submitting the
// quote's calldata through an Ethereum JSON-RPC node.
package zeroex

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
)

const (
	tickerPollEvery  = time.Second
	balancePollEvery = 5 * time.Second
)

// Config holds the connection parameters for the adapter.
type Config struct {
	// RpcURL is the Ethereum JSON-RPC endpoint.
	RpcURL string
	// QuoteHost is the swap aggregator API base URL.
	QuoteHost string
	// ChainID of the target network.
	ChainID int64
	// Account is the taker address quotes are requested for. Derived from
	// the signer key when empty.
	Account string
	// SignerKeyHex is the hex-encoded private key used to sign swaps. May be
	// empty for observation-only use; trading then fails.
	SignerKeyHex string
}

// ZeroEx is the on-chain venue adapter.
type ZeroEx struct {
	cfg     Config
	eth     *ethclient.Client
	http    *http.Client
	logger  *slog.Logger
	key     *ecdsa.PrivateKey
	account common.Address
	chainID *big.Int

	events chan domain.Event
	sendMu sync.RWMutex
	closed bool

	txMu sync.Mutex // serializes nonce allocation across swap submissions
}

var _ exchange.Exchange = (*ZeroEx)(nil)

// New dials the JSON-RPC node and prepares the signing account. The node is
// optional: without it the adapter can still poll quotes, but balance
// reporting and trading are unavailable.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*ZeroEx, error) {
	var eth *ethclient.Client
	if cfg.RpcURL != "" {
		var err error
		eth, err = ethclient.DialContext(ctx, cfg.RpcURL)
		if err != nil {
			return nil, fmt.Errorf("zeroex: dial rpc: %w", err)
		}
	}

	z := &ZeroEx{
		cfg:     cfg,
		eth:     eth,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(slog.String("component", "zeroex")),
		account: common.HexToAddress(cfg.Account),
		chainID: big.NewInt(cfg.ChainID),
		events:  make(chan domain.Event, 64),
	}

	if cfg.SignerKeyHex != "" {
		key, err := gethcrypto.HexToECDSA(cfg.SignerKeyHex)
		if err != nil {
			return nil, fmt.Errorf("zeroex: parse signer key: %w", err)
		}
		z.key = key
		if cfg.Account == "" {
			z.account = gethcrypto.PubkeyToAddress(key.PublicKey)
		}
	}

	return z, nil
}

// Name returns the venue's display name.
func (z *ZeroEx) Name() string {
	return "zeroex"
}

// Events returns the adapter's event stream.
func (z *ZeroEx) Events() <-chan domain.Event {
	return z.events
}

// SubscribeTicker starts the quote polling loop. sizeHint is the base amount
// each quote is priced for; on-chain pricing depends on trade size, so the
// hint should match the configured trade cap.
func (z *ZeroEx) SubscribeTicker(ctx context.Context, symbol domain.Symbol, sizeHint decimal.Decimal) error {
	if sizeHint.Sign() <= 0 {
		return fmt.Errorf("zeroex: ticker size hint must be positive")
	}
	go z.pollTickers(ctx, symbol, sizeHint)
	return nil
}

// SubscribeWallet starts balance polling for the symbol's two tokens.
func (z *ZeroEx) SubscribeWallet(ctx context.Context, symbol domain.Symbol) error {
	if z.eth == nil {
		return fmt.Errorf("zeroex: balance polling requires an rpc endpoint")
	}
	go z.pollBalances(ctx, symbol.Base)
	go z.pollBalances(ctx, symbol.Quote)
	return nil
}

// emit delivers an event unless the stream has been closed or ctx cancelled.
func (z *ZeroEx) emit(ctx context.Context, ev domain.Event) {
	z.sendMu.RLock()
	defer z.sendMu.RUnlock()
	if z.closed {
		return
	}
	select {
	case z.events <- ev:
	case <-ctx.Done():
	}
}

// closeEvents marks the stream dead and closes the event channel.
func (z *ZeroEx) closeEvents() {
	z.sendMu.Lock()
	defer z.sendMu.Unlock()
	if !z.closed {
		z.closed = true
		close(z.events)
	}
}

// toUnits converts a human amount to the token's smallest-unit integer.
func toUnits(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

// fromUnits converts a smallest-unit integer to a human amount.
func fromUnits(units *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -int32(decimals))
}
