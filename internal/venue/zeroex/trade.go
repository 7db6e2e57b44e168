package zeroex

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// pollBalances reads the token's ERC-20 balance on an interval and emits a
// Wallet event whenever it changes. RPC failures are logged and retried; a
// stale balance only delays trading, it does not corrupt state.
func (z *ZeroEx) pollBalances(ctx context.Context, token domain.Token) {
	ticker := time.NewTicker(balancePollEvery)
	defer ticker.Stop()

	var last *big.Int
	for {
		units, err := z.erc20Balance(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			z.logger.Warn("balance poll failed",
				slog.String("token", token.Name),
				slog.String("error", err.Error()),
			)
		} else if last == nil || units.Cmp(last) != 0 {
			last = units
			z.emit(ctx, domain.Wallet{
				Raw:    map[string]any{"address": token.Address, "balance": units.String()},
				Token:  token,
				Amount: fromUnits(units, token.Decimals),
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// erc20Balance calls balanceOf(account) on the token contract.
func (z *ZeroEx) erc20Balance(ctx context.Context, token domain.Token) (*big.Int, error) {
	contract := common.HexToAddress(token.Address)
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(z.account.Bytes(), 32)...)

	out, err := z.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token.Name, err)
	}
	return new(big.Int).SetBytes(out), nil
}

// BuyMarketOrder swaps quote tokens for exactly amount base tokens.
func (z *ZeroEx) BuyMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	quote, raw, err := z.fetchQuote(ctx, quoteParams{
		SellToken: symbol.Quote.Address,
		BuyToken:  symbol.Base.Address,
		BuyAmount: toUnits(amount, symbol.Base.Decimals),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: buy quote: %w", err)
	}

	sellUnits, ok := new(big.Int).SetString(quote.SellAmount, 10)
	if !ok {
		return domain.Order{}, fmt.Errorf("zeroex: malformed quote sellAmount %q", quote.SellAmount)
	}
	price := fromUnits(sellUnits, symbol.Quote.Decimals).Div(amount)

	return z.executeSwap(ctx, quote, raw, domain.Order{
		Symbol: symbol,
		Amount: amount,
		Price:  price,
		Side:   domain.OrderSideBuy,
	})
}

// SellMarketOrder swaps exactly amount base tokens for quote tokens.
func (z *ZeroEx) SellMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	quote, raw, err := z.fetchQuote(ctx, quoteParams{
		SellToken:  symbol.Base.Address,
		BuyToken:   symbol.Quote.Address,
		SellAmount: toUnits(amount, symbol.Base.Decimals),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: sell quote: %w", err)
	}

	buyUnits, ok := new(big.Int).SetString(quote.BuyAmount, 10)
	if !ok {
		return domain.Order{}, fmt.Errorf("zeroex: malformed quote buyAmount %q", quote.BuyAmount)
	}
	price := fromUnits(buyUnits, symbol.Quote.Decimals).Div(amount)

	return z.executeSwap(ctx, quote, raw, domain.Order{
		Symbol: symbol,
		Amount: amount,
		Price:  price,
		Side:   domain.OrderSideSell,
	})
}

// executeSwap signs and submits the quote's calldata, waits for the receipt,
// and emits the fill on the event stream.
func (z *ZeroEx) executeSwap(ctx context.Context, quote *swapQuote, raw map[string]any, order domain.Order) (domain.Order, error) {
	if z.key == nil || z.eth == nil {
		return domain.Order{}, fmt.Errorf("zeroex: %w: no signer key or rpc endpoint configured", domain.ErrSigningFailed)
	}
	calldata, err := hexutil.Decode(quote.Data)
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: decode calldata: %w", err)
	}
	gas, err := strconv.ParseUint(quote.Gas, 10, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: parse gas %q: %w", quote.Gas, err)
	}
	gasPrice, ok := new(big.Int).SetString(quote.GasPrice, 10)
	if !ok {
		return domain.Order{}, fmt.Errorf("zeroex: parse gas price %q", quote.GasPrice)
	}
	value := new(big.Int)
	if quote.Value != "" {
		if _, ok := value.SetString(quote.Value, 10); !ok {
			return domain.Order{}, fmt.Errorf("zeroex: parse value %q", quote.Value)
		}
	}
	to := common.HexToAddress(quote.To)

	z.txMu.Lock()
	defer z.txMu.Unlock()

	nonce, err := z.eth.PendingNonceAt(ctx, z.account)
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: fetch nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     calldata,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(z.chainID), z.key)
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: %w: %v", domain.ErrSigningFailed, err)
	}

	z.logger.Info("submitting swap",
		"side", order.Side, "amount", order.Amount, "tx", signed.Hash().Hex())
	if err := z.eth.SendTransaction(ctx, signed); err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, z.eth, signed)
	if err != nil {
		return domain.Order{}, fmt.Errorf("zeroex: wait for receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Order{}, fmt.Errorf("zeroex: %w: swap reverted in tx %s",
			domain.ErrOrderRejected, signed.Hash().Hex())
	}

	raw["txHash"] = signed.Hash().Hex()
	order.Raw = raw
	z.emit(ctx, order)
	return order, nil
}
