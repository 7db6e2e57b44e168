package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
)

// Opportunity is one profitable crossing: buy amount base units on AskVenue
// at AskQuote, sell the same amount on BidVenue at BidQuote.
type Opportunity struct {
	ID       string
	Symbol   domain.Symbol
	Amount   decimal.Decimal
	Spread   decimal.Decimal
	AskVenue exchange.Exchange
	BidVenue exchange.Exchange
	AskQuote domain.Ticker
	BidQuote domain.Ticker
}

// Coordinator owns the in-flight trade state machine. While any venue has an
// outstanding leg the engine must not evaluate new opportunities; each leg
// resolves independently when its venue's Order event arrives through the
// merged stream.
//
// The pending set is mutated only from the decision loop goroutine; the leg
// goroutines report failures through a channel the loop selects on.
type Coordinator struct {
	pending map[domain.Venue]bool
	legErr  chan error
	logger  *slog.Logger
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		pending: make(map[domain.Venue]bool),
		legErr:  make(chan error, 2),
		logger:  logger.With(slog.String("component", "coordinator")),
	}
}

// InFlight reports whether any leg is outstanding.
func (c *Coordinator) InFlight() bool {
	return len(c.pending) > 0
}

// LegFailures delivers errors from submitted legs. A leg failure leaves the
// engine in an unknown risk position and must halt the run, not be retried
// or compensated.
func (c *Coordinator) LegFailures() <-chan error {
	return c.legErr
}

// Resolve clears venue's outstanding leg on receipt of its Order event.
// Returns true when the coordinator transitioned back to idle.
func (c *Coordinator) Resolve(venue domain.Venue, order domain.Order) bool {
	if !c.pending[venue] {
		// Fills can also arrive for manually placed orders; nothing to do.
		c.logger.Debug("order for venue with no outstanding leg",
			slog.String("venue", venue.Name()),
			slog.String("side", string(order.Side)),
		)
		return false
	}
	delete(c.pending, venue)
	c.logger.Info("leg resolved",
		slog.String("venue", venue.Name()),
		slog.String("side", string(order.Side)),
		slog.String("amount", order.Amount.String()),
		slog.String("price", order.Price.String()),
		slog.Int("outstanding", len(c.pending)),
	)
	return len(c.pending) == 0
}

// Execute submits both legs of opp concurrently: a market buy on the ask
// venue and a market sell on the bid venue, for the same amount. Both venues
// enter the pending set before either request is issued so that tickers
// arriving mid-submission are already suppressed. Submitting the legs in
// parallel is deliberate: neither venue's price gets a head start while the
// other leg is still being prepared.
func (c *Coordinator) Execute(ctx context.Context, opp Opportunity) {
	c.pending[opp.AskVenue] = true
	c.pending[opp.BidVenue] = true

	c.logger.Info("legs submitted",
		slog.String("opportunity_id", opp.ID),
		slog.String("symbol", opp.Symbol.String()),
		slog.String("amount", opp.Amount.String()),
		slog.String("spread", opp.Spread.String()),
		slog.String("buy_venue", opp.AskVenue.Name()),
		slog.String("buy_price", opp.AskQuote.Ask.String()),
		slog.String("sell_venue", opp.BidVenue.Name()),
		slog.String("sell_price", opp.BidQuote.Bid.String()),
	)

	go func() {
		if _, err := opp.AskVenue.BuyMarketOrder(ctx, opp.Symbol, opp.Amount, opp.AskQuote); err != nil {
			c.legErr <- fmt.Errorf("buy leg on %s: %w", opp.AskVenue.Name(), err)
		}
	}()
	go func() {
		if _, err := opp.BidVenue.SellMarketOrder(ctx, opp.Symbol, opp.Amount, opp.BidQuote); err != nil {
			c.legErr <- fmt.Errorf("sell leg on %s: %w", opp.BidVenue.Name(), err)
		}
	}()
}
