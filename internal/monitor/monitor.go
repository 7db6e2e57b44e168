// Package monitor implements the non-trading observation mode: it consumes
// ticker events across all venues, computes pairwise spreads between every
// pair of most-recently-seen venue prices, and appends one row per pair per
// update to the persistent spread log. It never places orders.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// venuePrices is the latest observation for one venue.
type venuePrices struct {
	last decimal.Decimal
	bid  decimal.Decimal
	ask  decimal.Decimal
}

// Monitor records cross-venue spreads. Unlike the trading engine it compares
// every venue pair, not just the global best quotes, so lingering spreads
// between non-extreme venues are visible in the data.
type Monitor struct {
	events <-chan domain.VenueEvent
	store  domain.SpreadStore
	quotes domain.QuoteCache
	logger *slog.Logger

	last map[string]venuePrices
}

// New creates a Monitor reading from the merged venue stream. quotes may be
// nil when no cache is configured.
func New(events <-chan domain.VenueEvent, store domain.SpreadStore, quotes domain.QuoteCache, logger *slog.Logger) *Monitor {
	return &Monitor{
		events: events,
		store:  store,
		quotes: quotes,
		logger: logger.With(slog.String("component", "monitor")),
		last:   make(map[string]venuePrices),
	}
}

// Run consumes ticker events until the context is cancelled or the merged
// stream closes.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("spread monitor started")
	defer m.logger.Info("spread monitor stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ve, ok := <-m.events:
			if !ok {
				return fmt.Errorf("monitor: %w", domain.ErrFeedClosed)
			}
			ticker, ok := ve.Event.(domain.Ticker)
			if !ok {
				continue
			}
			if err := m.observe(ctx, ticker, ve.Venue.Name()); err != nil {
				return fmt.Errorf("monitor: %w", err)
			}
		}
	}
}

// observe folds one ticker into the latest-price table and appends a spread
// row against every other known venue.
func (m *Monitor) observe(ctx context.Context, t domain.Ticker, venue string) error {
	now := time.Now().UTC()
	cur := venuePrices{last: lastPrice(t), bid: t.Bid, ask: t.Ask}
	m.last[venue] = cur

	m.logger.Debug("prices updated",
		slog.String("venue", venue),
		slog.String("last", cur.last.String()),
		slog.String("bid", cur.bid.String()),
		slog.String("ask", cur.ask.String()),
	)

	if m.quotes != nil {
		q := domain.VenueQuote{Last: cur.last, Bid: cur.bid, Ask: cur.ask, ObservedAt: now}
		if err := m.quotes.SetQuote(ctx, venue, q); err != nil {
			m.logger.Warn("quote cache update failed",
				slog.String("venue", venue),
				slog.String("error", err.Error()),
			)
		}
	}

	var rows []domain.SpreadObservation
	for other, prices := range m.last {
		if other == venue {
			continue
		}
		obs := pairObservation(now, venue, cur, other, prices)
		m.logger.Info("spread observed",
			slog.String("venue_a", obs.VenueA),
			slog.String("venue_b", obs.VenueB),
			slog.String("last_spread", obs.LastSpread.String()),
			slog.String("last_spread_rel", obs.LastSpreadRel.String()),
			slog.String("ask_bid_ab", obs.AskBidSpreadAB.String()),
			slog.String("ask_bid_ba", obs.AskBidSpreadBA.String()),
		)
		rows = append(rows, obs)
	}
	if len(rows) == 0 {
		return nil
	}

	if err := m.store.Append(ctx, rows); err != nil {
		return fmt.Errorf("append spreads: %w", err)
	}
	return nil
}

// pairObservation computes the spread row for venue pair (a, b).
func pairObservation(at time.Time, a string, pa venuePrices, b string, pb venuePrices) domain.SpreadObservation {
	obs := domain.SpreadObservation{
		ObservedAt: at,
		VenueA:     a,
		VenueB:     b,
		LastA:      pa.last,
		BidA:       pa.bid,
		AskA:       pa.ask,
		LastB:      pb.last,
		BidB:       pb.bid,
		AskB:       pb.ask,
	}

	obs.LastSpread = pa.last.Sub(pb.last).Abs()
	obs.LastSpreadRel = ratio(obs.LastSpread, pa.last)

	obs.AskBidSpreadAB = pa.ask.Sub(pb.bid)
	obs.AskBidSpreadABRel = ratio(obs.AskBidSpreadAB, pa.ask)

	obs.AskBidSpreadBA = pb.ask.Sub(pa.bid)
	obs.AskBidSpreadBARel = ratio(obs.AskBidSpreadBA, pb.ask)

	return obs
}

// ratio divides guarding against a zero denominator; a venue reporting zero
// prices yields a zero relative spread rather than a fault.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.Sign() == 0 {
		return decimal.Zero
	}
	return num.Div(den)
}

// lastPrice extracts the venue-reported last trade price from the ticker's
// raw payload when present, falling back to the mid price.
func lastPrice(t domain.Ticker) decimal.Decimal {
	if v, ok := t.Raw["lastPrice"]; ok {
		switch x := v.(type) {
		case decimal.Decimal:
			return x
		case string:
			if d, err := decimal.NewFromString(x); err == nil {
				return d
			}
		case float64:
			return decimal.NewFromFloat(x)
		}
	}
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}
