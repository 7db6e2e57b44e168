// Package exchange defines the capability contract every venue adapter must
// implement. The decision core depends only on this interface; per-venue
// connectivity (sessions, parsing, signing, chain submission) lives entirely
// behind it.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// Exchange is one trading venue: a centralized exchange or an on-chain DEX.
// Each adapter owns a private event stream on which it delivers Ticker,
// Wallet, and Order events; the multiplexer fans these streams into the
// single merged stream consumed by the engine.
//
// Adapters must be distinct pointer values so the engine can tell venues
// apart by interface identity.
type Exchange interface {
	domain.Venue

	// SubscribeTicker begins the live ticker feed for symbol. sizeHint is
	// the notional the venue should quote around; quote-based venues use it
	// to fetch a quote for that specific size.
	SubscribeTicker(ctx context.Context, symbol domain.Symbol, sizeHint decimal.Decimal) error

	// SubscribeWallet begins balance reporting, scoped to the two tokens in
	// symbol. Balances arrive as Wallet events on the adapter's stream.
	SubscribeWallet(ctx context.Context, symbol domain.Symbol) error

	// Events returns the adapter's private event stream. The channel is
	// closed when the adapter permanently loses its feed; the engine treats
	// that as fatal.
	Events() <-chan domain.Event

	// BuyMarketOrder executes an immediate buy of amount base units. quote
	// is the ticker that triggered the trade; its Raw payload may carry a
	// venue-side quote-lock handle needed to finalize pricing.
	BuyMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, quote domain.Ticker) (domain.Order, error)

	// SellMarketOrder executes an immediate sell of amount base units.
	SellMarketOrder(ctx context.Context, symbol domain.Symbol, amount decimal.Decimal, quote domain.Ticker) (domain.Order, error)
}
