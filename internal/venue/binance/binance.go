// Package binance implements the Binance spot venue adapter. Market data,
// balance updates, and execution reports all arrive over a single user data
// stream websocket; orders are submitted through the signed REST API.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/crypto"
	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
)

// Config holds the connection parameters for the Binance adapter.
type Config struct {
	ApiKey    string
	SecretKey string
	// RestHost is the REST API base URL, e.g. "https://api.binance.com".
	RestHost string
	// WsHost is the websocket base URL, e.g. "wss://stream.binance.com:443".
	WsHost string
}

// Binance is the Binance spot adapter.
type Binance struct {
	cfg    Config
	signer *crypto.HMACSigner
	http   *http.Client
	logger *slog.Logger

	conn *websocket.Conn

	events chan domain.Event
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	symbols map[string]domain.Symbol // exchange symbol -> traded pair
	tokens  map[string]domain.Token  // tracked token name -> token
}

var _ exchange.Exchange = (*Binance)(nil)

// New dials the websocket and starts the read loop. With API credentials the
// connection is a user data stream (balances and execution reports arrive
// alongside market data); without them it is a plain market stream, enough
// for observation-only use. The event channel is closed when the stream
// permanently fails.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Binance, error) {
	b := &Binance{
		cfg:     cfg,
		signer:  &crypto.HMACSigner{Key: cfg.ApiKey, Secret: cfg.SecretKey},
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(slog.String("component", "binance")),
		events:  make(chan domain.Event, 64),
		symbols: make(map[string]domain.Symbol),
		tokens:  make(map[string]domain.Token),
	}

	wsURL := strings.TrimSuffix(cfg.WsHost, "/") + "/ws"
	var listenKey string
	if cfg.ApiKey != "" {
		key, err := b.createListenKey(ctx)
		if err != nil {
			return nil, err
		}
		listenKey = key
		wsURL += "/" + key
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	b.conn = conn

	go b.readLoop(ctx)
	if listenKey != "" {
		go b.keepAlive(ctx, listenKey)
	}

	return b, nil
}

// Name returns the venue's display name.
func (b *Binance) Name() string {
	return "binance"
}

// Events returns the adapter's event stream.
func (b *Binance) Events() <-chan domain.Event {
	return b.events
}

// SubscribeTicker subscribes to the symbol's rolling ticker stream over the
// open websocket. The size hint is ignored; the order book top does not
// depend on trade size.
func (b *Binance) SubscribeTicker(ctx context.Context, symbol domain.Symbol, _ decimal.Decimal) error {
	exchangeSymbol := exchangeSymbol(symbol)

	b.mu.Lock()
	b.symbols[exchangeSymbol] = symbol
	b.mu.Unlock()

	payload := map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{strings.ToLower(exchangeSymbol) + "@ticker"},
		"id":     uuid.New().String(),
	}
	if err := b.conn.WriteJSON(payload); err != nil {
		return err
	}

	b.logger.Debug("ticker subscription sent", slog.String("symbol", exchangeSymbol))
	return nil
}

// SubscribeWallet starts balance reporting for the symbol's two tokens. It
// fetches an initial account snapshot over REST; subsequent updates arrive
// as outboundAccountPosition events on the user data stream.
func (b *Binance) SubscribeWallet(ctx context.Context, symbol domain.Symbol) error {
	if b.cfg.ApiKey == "" {
		return fmt.Errorf("binance: wallet subscription requires API credentials")
	}

	b.mu.Lock()
	b.tokens[symbol.Base.Name] = symbol.Base
	b.tokens[symbol.Quote.Name] = symbol.Quote
	b.mu.Unlock()

	return b.fetchWalletSnapshot(ctx)
}

// emit delivers an event unless the stream has been closed or ctx cancelled.
func (b *Binance) emit(ctx context.Context, ev domain.Event) {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	case <-ctx.Done():
	}
}

// closeEvents marks the stream dead and closes the event channel, waiting
// out any in-flight emit first.
func (b *Binance) closeEvents() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}

// trackedToken returns the Token for name if SubscribeWallet registered it.
func (b *Binance) trackedToken(name string) (domain.Token, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tokens[name]
	return t, ok
}

// tradedSymbol returns the pair registered for the exchange symbol.
func (b *Binance) tradedSymbol(exchangeSymbol string) (domain.Symbol, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.symbols[exchangeSymbol]
	return s, ok
}

// exchangeSymbol renders a pair in Binance's concatenated uppercase form.
func exchangeSymbol(symbol domain.Symbol) string {
	return strings.ToUpper(symbol.Base.Name + symbol.Quote.Name)
}
