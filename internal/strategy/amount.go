package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// AmountStrategy sizes a trade from the triggering quotes and the relevant
// wallet snapshots. askWallet is the ask venue's quote-asset balance (spent
// when buying); bidWallet is the bid venue's base-asset balance (spent when
// selling).
type AmountStrategy interface {
	Name() string
	// Calculate returns the tradable base-asset quantity. ok is false when
	// the computed amount is too small to trade.
	Calculate(ask, bid domain.Ticker, askWallet, bidWallet domain.Wallet) (amount decimal.Decimal, ok bool)
}

// SimpleAmount is the reference sizing policy: the configured cap, clipped by
// the quantity available at each quote and by both wallets.
type SimpleAmount struct {
	tradeCap  decimal.Decimal
	minAmount decimal.Decimal
}

// NewSimpleAmount creates the reference amount policy. tradeCap and
// minAmount are in base-asset units.
func NewSimpleAmount(tradeCap, minAmount decimal.Decimal) *SimpleAmount {
	return &SimpleAmount{tradeCap: tradeCap, minAmount: minAmount}
}

// Name returns the policy identifier used in config.
func (s *SimpleAmount) Name() string { return "simple" }

// Calculate clips the configured cap by quoted liquidity, then by balances.
// The ask-side wallet holds quote asset, so it is converted into base terms
// at the current ask price before the comparison.
func (s *SimpleAmount) Calculate(ask, bid domain.Ticker, askWallet, bidWallet domain.Wallet) (decimal.Decimal, bool) {
	amount := decimal.Min(s.tradeCap, ask.AskAmount, bid.BidAmount)
	amount = decimal.Min(amount, bidWallet.Amount, askWallet.Amount.Mul(ask.Ask))

	if amount.LessThan(s.minAmount) {
		return decimal.Zero, false
	}
	return amount, true
}
