package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// listenKeyKeepAliveEvery is how often the user data stream listen key is
// refreshed. Binance expires keys after 60 minutes without a keep-alive.
const listenKeyKeepAliveEvery = 30 * time.Minute

// createListenKey opens a user data stream and returns its listen key.
func (b *Binance) createListenKey(ctx context.Context) (string, error) {
	resp, err := b.do(ctx, http.MethodPost, "/api/v3/userDataStream", "")
	if err != nil {
		return "", fmt.Errorf("binance: create listen key: %w", err)
	}
	key, ok := resp["listenKey"].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("binance: listen key missing from response")
	}
	return key, nil
}

// keepAlive refreshes the listen key periodically until ctx is cancelled.
func (b *Binance) keepAlive(ctx context.Context, listenKey string) {
	ticker := time.NewTicker(listenKeyKeepAliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := b.do(ctx, http.MethodPut, "/api/v3/userDataStream", "listenKey="+listenKey)
			if err != nil {
				b.logger.Warn("listen key keep-alive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// fetchWalletSnapshot pulls current account balances and emits a Wallet
// event for each tracked token.
func (b *Binance) fetchWalletSnapshot(ctx context.Context) error {
	query := b.signer.SignedQuery("omitZeroBalances=true")
	resp, err := b.do(ctx, http.MethodGet, "/api/v3/account", query)
	if err != nil {
		return fmt.Errorf("binance: fetch account: %w", err)
	}

	balances, ok := resp["balances"].([]any)
	if !ok {
		return fmt.Errorf("binance: account response missing balances")
	}

	for _, entry := range balances {
		balance, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		asset, _ := balance["asset"].(string)
		token, tracked := b.trackedToken(asset)
		if !tracked {
			continue
		}
		free, err := decimalField(balance, "free")
		if err != nil {
			return fmt.Errorf("binance: account balance %s: %w", asset, err)
		}
		b.emit(ctx, domain.Wallet{Raw: balance, Token: token, Amount: free})
	}
	return nil
}

// BuyMarketOrder submits a market buy for amount base units.
func (b *Binance) BuyMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	return b.placeMarketOrder(ctx, symbol, amount, domain.OrderSideBuy)
}

// SellMarketOrder submits a market sell for amount base units.
func (b *Binance) SellMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	return b.placeMarketOrder(ctx, symbol, amount, domain.OrderSideSell)
}

func (b *Binance) placeMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, side domain.OrderSide) (domain.Order, error) {
	exchangeSym := exchangeSymbol(symbol)

	// Register the pair so the execution report on the stream can be mapped
	// back to it.
	b.mu.Lock()
	b.symbols[exchangeSym] = symbol
	b.mu.Unlock()

	query := fmt.Sprintf("symbol=%s&side=%s&type=MARKET&quantity=%s",
		exchangeSym, strings.ToUpper(string(side)), amount)

	b.logger.Info("sending order",
		slog.String("symbol", exchangeSym),
		slog.String("side", string(side)),
		slog.String("amount", amount.String()),
	)
	resp, err := b.do(ctx, http.MethodPost, "/api/v3/order", b.signer.SignedQuery(query))
	if err != nil {
		return domain.Order{}, fmt.Errorf("binance: %s order: %w: %v", side, domain.ErrOrderRejected, err)
	}

	order := domain.Order{Raw: resp, Symbol: symbol, Amount: amount, Side: side}
	if executed, err := decimalField(resp, "executedQty"); err == nil && executed.Sign() > 0 {
		order.Amount = executed
		if quoteQty, err := decimalField(resp, "cummulativeQuoteQty"); err == nil {
			order.Price = quoteQty.Div(executed)
		}
	}
	return order, nil
}

// do performs one REST call and decodes the JSON response. The API key
// header is always attached; signed endpoints embed their signature in
// query.
func (b *Binance) do(ctx context.Context, method, path, query string) (map[string]any, error) {
	url := strings.TrimSuffix(b.cfg.RestHost, "/") + path
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", b.cfg.ApiKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := parsed["msg"].(string)
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	return parsed, nil
}
