// Package domain defines the core data model shared by every layer of the
// arbitrage engine: tokens, symbols, market events, and the store and cache
// interfaces implemented by the infrastructure packages.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Token describes one asset of a traded pair. Address is the on-chain
// contract address and is empty for assets on centralized venues. Identity
// within a run is by Name.
type Token struct {
	Name     string
	Address  string
	Decimals int
}

// String returns a compact representation for logging.
func (t Token) String() string {
	return fmt.Sprintf("Token(%s)", t.Name)
}

// Symbol is the traded instrument: an ordered (base, quote) token pair.
// The same Symbol is used across every venue in a run.
type Symbol struct {
	Base  Token
	Quote Token
}

// String returns the conventional BASE/QUOTE display form.
func (s Symbol) String() string {
	return s.Base.Name + "/" + s.Quote.Name
}

// Ticker is a single price observation from a venue. Raw carries the
// venue-specific payload (quote identifiers, last price, etc.); the decision
// core never inspects it, but adapters may need it back to finalize a trade
// (e.g. a quote-lock handle).
type Ticker struct {
	Raw       map[string]any
	Bid       decimal.Decimal
	BidAmount decimal.Decimal
	Ask       decimal.Decimal
	AskAmount decimal.Decimal
}

// Wallet is a balance snapshot for one token on one venue. A new Wallet
// event for the same (venue, token) pair supersedes the previous one wholly.
type Wallet struct {
	Raw    map[string]any
	Token  Token
	Amount decimal.Decimal
}

// EmptyWallet returns a zero-balance Wallet for token. The engine seeds its
// per-venue wallet map with these so amount strategies always receive a
// snapshot, even before the first balance event arrives.
func EmptyWallet(token Token) Wallet {
	return Wallet{Raw: map[string]any{}, Token: token, Amount: decimal.Zero}
}

// String returns a compact representation for logging.
func (w Wallet) String() string {
	return fmt.Sprintf("Wallet(token=%s, amount=%s)", w.Token.Name, w.Amount)
}

// Order is a fill acknowledgement from a venue. The coordinator uses it only
// to close out pending-trade state; executed amount is not reconciled against
// the requested amount.
type Order struct {
	Raw    map[string]any
	Symbol Symbol
	Amount decimal.Decimal
	Price  decimal.Decimal
	Side   OrderSide
}
