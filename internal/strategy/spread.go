// Package strategy holds the pluggable decision policies of the engine:
// spread profitability and trade sizing. Policies are pure functions over
// snapshots handed to them by the engine; they hold no market state and must
// not retain references across calls.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// SpreadStrategy judges whether crossing the best ask on one venue with the
// best bid on another is profitable.
type SpreadStrategy interface {
	Name() string
	// Evaluate returns whether the crossing is profitable and the computed
	// spread. Implementations must be side-effect free.
	Evaluate(ask, bid domain.Ticker) (profitable bool, spread decimal.Decimal)
}

// SimpleSpread is the reference policy: spread = (bid - ask) / bid,
// profitable when the spread meets a fixed threshold.
type SimpleSpread struct {
	threshold decimal.Decimal
}

// NewSimpleSpread creates the reference spread policy with the given
// non-negative threshold (a dimensionless fraction, e.g. 0.02 for 2%).
func NewSimpleSpread(threshold decimal.Decimal) *SimpleSpread {
	return &SimpleSpread{threshold: threshold}
}

// Name returns the policy identifier used in config.
func (s *SimpleSpread) Name() string { return "simple" }

// Evaluate computes (bid - ask) / bid. A zero or negative bid cannot be
// divided by and is never profitable; the guard keeps venue garbage from
// faulting the decision loop.
func (s *SimpleSpread) Evaluate(ask, bid domain.Ticker) (bool, decimal.Decimal) {
	if bid.Bid.Sign() <= 0 {
		return false, decimal.Zero
	}
	spread := bid.Bid.Sub(ask.Ask).Div(bid.Bid)
	return spread.GreaterThanOrEqual(s.threshold), spread
}
