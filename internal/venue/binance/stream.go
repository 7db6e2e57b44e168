package binance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// readLoop consumes the user data stream until the connection fails, then
// closes the event channel so consumers see the feed as permanently lost.
func (b *Binance) readLoop(ctx context.Context) {
	defer b.closeEvents()
	defer b.conn.Close()

	for {
		var msg map[string]any
		if err := b.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				b.logger.Error("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		eventType, ok := msg["e"].(string)
		if !ok {
			// Subscription acks and other control frames have no event type.
			b.logger.Debug("ignoring message without event type")
			continue
		}

		switch eventType {
		case "24hrTicker":
			b.handleTicker(ctx, msg)
		case "outboundAccountPosition":
			b.handleWallet(ctx, msg)
		case "executionReport":
			b.handleOrder(ctx, msg)
		default:
			b.logger.Debug("ignoring event", slog.String("type", eventType))
		}
	}
}

// handleTicker parses a rolling ticker event. Field names follow the stream
// payload: b/B bid price and quantity, a/A ask price and quantity, c last
// price.
func (b *Binance) handleTicker(ctx context.Context, msg map[string]any) {
	bid, err1 := decimalField(msg, "b")
	bidAmount, err2 := decimalField(msg, "B")
	ask, err3 := decimalField(msg, "a")
	askAmount, err4 := decimalField(msg, "A")
	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			b.logger.Warn("malformed ticker", slog.String("error", err.Error()))
			return
		}
	}

	msg["sourceName"] = b.Name()
	if last, ok := msg["c"]; ok {
		msg["lastPrice"] = last
	}

	b.emit(ctx, domain.Ticker{
		Raw:       msg,
		Bid:       bid,
		BidAmount: bidAmount,
		Ask:       ask,
		AskAmount: askAmount,
	})
}

// handleWallet parses an account position event and emits a Wallet per
// tracked token. The "f" field is the free balance.
func (b *Binance) handleWallet(ctx context.Context, msg map[string]any) {
	balances, ok := msg["B"].([]any)
	if !ok {
		b.logger.Warn("malformed account position event")
		return
	}

	for _, entry := range balances {
		balance, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		asset, _ := balance["a"].(string)
		token, tracked := b.trackedToken(asset)
		if !tracked {
			continue
		}
		free, err := decimalField(balance, "f")
		if err != nil {
			b.logger.Warn("malformed balance",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
			continue
		}
		b.emit(ctx, domain.Wallet{Raw: balance, Token: token, Amount: free})
	}
}

// handleOrder parses an execution report. Only terminal FILLED reports are
// emitted; intermediate NEW and partial TRADE reports would otherwise
// release pending trade state before the order completes.
func (b *Binance) handleOrder(ctx context.Context, msg map[string]any) {
	status, _ := msg["X"].(string)
	if status != "FILLED" {
		b.logger.Debug("execution report", slog.String("status", status))
		return
	}

	exchangeSym, _ := msg["s"].(string)
	symbol, ok := b.tradedSymbol(exchangeSym)
	if !ok {
		b.logger.Warn("execution report for unknown symbol", slog.String("symbol", exchangeSym))
		return
	}

	amount, err := decimalField(msg, "z") // cumulative filled quantity
	if err != nil {
		b.logger.Warn("malformed execution report", slog.String("error", err.Error()))
		return
	}

	// Market orders report price 0; the last executed price carries the fill.
	price, err := decimalField(msg, "p")
	if err != nil || price.IsZero() {
		if last, lerr := decimalField(msg, "L"); lerr == nil {
			price = last
		}
	}

	side := domain.OrderSideBuy
	if s, _ := msg["S"].(string); s == "SELL" {
		side = domain.OrderSideSell
	}

	b.emit(ctx, domain.Order{
		Raw:    msg,
		Symbol: symbol,
		Amount: amount,
		Price:  price,
		Side:   side,
	})
}

// decimalField parses a string-encoded decimal field from a stream payload.
func decimalField(msg map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := msg[key].(string)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("field %q missing or not a string", key)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}
