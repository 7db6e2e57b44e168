package zeroex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// swapQuote is a firm quote from the aggregator: pricing plus the calldata
// that executes the swap at that price.
type swapQuote struct {
	Price            string `json:"price"`
	SellAmount       string `json:"sellAmount"`
	BuyAmount        string `json:"buyAmount"`
	To               string `json:"to"`
	Data             string `json:"data"`
	Value            string `json:"value"`
	Gas              string `json:"gas"`
	GasPrice         string `json:"gasPrice"`
	AllowanceTarget  string `json:"allowanceTarget"`
	EstimatedGasUsed string `json:"estimatedGas"`
}

// quoteParams selects the direction and size of a quote request. Exactly one
// of SellAmount and BuyAmount must be set.
type quoteParams struct {
	SellToken  string
	BuyToken   string
	SellAmount *big.Int
	BuyAmount  *big.Int
}

// fetchQuote requests a firm quote from the aggregator.
func (z *ZeroEx) fetchQuote(ctx context.Context, p quoteParams) (*swapQuote, map[string]any, error) {
	q := url.Values{}
	q.Set("sellToken", p.SellToken)
	q.Set("buyToken", p.BuyToken)
	q.Set("takerAddress", z.account.Hex())
	if p.SellAmount != nil {
		q.Set("sellAmount", p.SellAmount.String())
	}
	if p.BuyAmount != nil {
		q.Set("buyAmount", p.BuyAmount.String())
	}

	endpoint := strings.TrimSuffix(z.cfg.QuoteHost, "/") + "/swap/v1/quote?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := z.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("quote request: status %d: %s", resp.StatusCode, body)
	}

	var quote swapQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, nil, fmt.Errorf("decode quote: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode quote payload: %w", err)
	}
	return &quote, raw, nil
}

// pollTickers fetches a sell-side quote for the hinted size once per tick
// and emits a Ticker whenever the implied price changes. The loop closes the
// event stream when quoting fails repeatedly, which the engine treats as a
// lost feed.
func (z *ZeroEx) pollTickers(ctx context.Context, symbol domain.Symbol, sizeHint decimal.Decimal) {
	defer z.closeEvents()

	const maxConsecutiveFailures = 10

	sellUnits := toUnits(sizeHint, symbol.Base.Decimals)
	params := quoteParams{
		SellToken:  symbol.Base.Address,
		BuyToken:   symbol.Quote.Address,
		SellAmount: sellUnits,
	}

	var lastPrice decimal.Decimal
	failures := 0
	ticker := time.NewTicker(tickerPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		quote, raw, err := z.fetchQuote(ctx, params)
		if err != nil {
			failures++
			z.logger.Warn("quote poll failed",
				slog.Int("failures", failures),
				slog.String("error", err.Error()),
			)
			if failures >= maxConsecutiveFailures {
				z.logger.Error("quote feed lost", slog.Int("failures", failures))
				return
			}
			continue
		}
		failures = 0

		buyUnits, ok := new(big.Int).SetString(quote.BuyAmount, 10)
		if !ok {
			z.logger.Warn("malformed quote buyAmount", slog.String("value", quote.BuyAmount))
			continue
		}
		quoteAmount := fromUnits(buyUnits, symbol.Quote.Decimals)
		price := quoteAmount.Div(sizeHint)

		if price.Equal(lastPrice) {
			continue
		}
		lastPrice = price

		raw["sourceName"] = z.Name()
		raw["lastPrice"] = price.String()

		// A single firm quote prices both sides at the hinted size.
		z.emit(ctx, domain.Ticker{
			Raw:       raw,
			Bid:       price,
			BidAmount: sizeHint,
			Ask:       price,
			AskAmount: quoteAmount,
		})
	}
}
