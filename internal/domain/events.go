package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the closed set of message variants flowing from venue adapters
// into the decision loop. Only Ticker, Wallet, and Order implement it;
// consumers switch exhaustively over these three types.
type Event interface {
	isEvent()
}

func (Ticker) isEvent() {}
func (Wallet) isEvent() {}
func (Order) isEvent()  {}

// Venue identifies a trading counterparty. Adapters implement it with a
// stable display name; the engine compares venues by interface identity, so
// each adapter must be a distinct pointer value.
type Venue interface {
	Name() string
}

// VenueEvent tags an Event with its origin venue. This is the element type
// of the merged stream produced by the multiplexer.
type VenueEvent struct {
	Event Event
	Venue Venue
}

// SpreadObservation is one pairwise spread measurement between two venues,
// recorded by the monitoring mode. All spread fields are derived from the
// most recently seen prices on each venue at observation time.
type SpreadObservation struct {
	// ID is assigned by the store on insert; zero until persisted.
	ID         int64
	ObservedAt time.Time
	VenueA     string
	VenueB     string

	// Last-price spread between the venues, absolute and relative to A.
	LastSpread    decimal.Decimal
	LastSpreadRel decimal.Decimal

	// Ask(A) - Bid(B), absolute and relative to Ask(A).
	AskBidSpreadAB    decimal.Decimal
	AskBidSpreadABRel decimal.Decimal

	// Ask(B) - Bid(A), absolute and relative to Ask(B).
	AskBidSpreadBA    decimal.Decimal
	AskBidSpreadBARel decimal.Decimal

	LastA decimal.Decimal
	BidA  decimal.Decimal
	AskA  decimal.Decimal
	LastB decimal.Decimal
	BidB  decimal.Decimal
	AskB  decimal.Decimal
}

// VenueQuote is the latest observed pricing for a venue, published to the
// quote cache by the monitoring mode.
type VenueQuote struct {
	Last       decimal.Decimal
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	ObservedAt time.Time
}
