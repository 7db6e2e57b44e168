// Package engine implements the decision core of the arbitrage bot: the
// market state tracker folding the merged event stream into best-ask/best-bid
// extrema and per-venue wallet snapshots, and the execution coordinator that
// fires paired legs on profitable opportunities.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
	"github.com/arbcore/arbot/internal/notify"
	"github.com/arbcore/arbot/internal/strategy"
)

// walletKey addresses a balance snapshot by venue identity and token name.
type walletKey struct {
	venue domain.Venue
	token string
}

// Engine consumes the merged venue stream and maintains the single consistent
// view of market state: the best-ask and best-bid quotes with their venues,
// and the latest wallet per (venue, token). All state is owned by the one
// goroutine running Run; nothing here needs a lock.
//
// Best quotes are tracked as running extrema rather than a sorted structure:
// only the two extreme values are ever needed, updates are O(1), and a stale
// extreme from a silent venue simply lingers until overwritten.
type Engine struct {
	events   <-chan domain.VenueEvent
	symbol   domain.Symbol
	spread   strategy.SpreadStrategy
	amount   strategy.AmountStrategy
	coord    *Coordinator
	notifier *notify.Notifier
	logger   *slog.Logger

	bestAsk      *domain.Ticker
	bestAskVenue exchange.Exchange
	bestBid      *domain.Ticker
	bestBidVenue exchange.Exchange
	wallets      map[walletKey]domain.Wallet
}

// New creates an Engine reading venue-tagged events from events. The spread
// and amount policies are the pluggable decision stage; notifier may deliver
// to zero senders.
func New(
	events <-chan domain.VenueEvent,
	symbol domain.Symbol,
	spread strategy.SpreadStrategy,
	amount strategy.AmountStrategy,
	coord *Coordinator,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		events:   events,
		symbol:   symbol,
		spread:   spread,
		amount:   amount,
		coord:    coord,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "engine")),
	}
}

// Run is the decision loop. It blocks until the context is cancelled, the
// merged stream closes, or a leg fails; the latter two are fatal because the
// engine cannot reason about a cross-venue spread with a venue missing, and a
// half-executed pair is an operational incident rather than a recoverable
// state.
func (e *Engine) Run(ctx context.Context) error {
	e.wallets = make(map[walletKey]domain.Wallet)
	e.logger.Info("engine started",
		slog.String("symbol", e.symbol.String()),
		slog.String("spread_strategy", e.spread.Name()),
		slog.String("amount_strategy", e.amount.Name()),
	)
	defer e.logger.Info("engine stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-e.coord.LegFailures():
			return fmt.Errorf("engine: leg execution failed: %w", err)
		case ve, ok := <-e.events:
			if !ok {
				return fmt.Errorf("engine: %w", domain.ErrFeedClosed)
			}
			e.handle(ctx, ve)
		}
	}
}

// handle folds one merged-stream event into engine state.
func (e *Engine) handle(ctx context.Context, ve domain.VenueEvent) {
	switch ev := ve.Event.(type) {
	case domain.Wallet:
		e.wallets[walletKey{ve.Venue, ev.Token.Name}] = ev
		e.logger.Debug("wallet updated",
			slog.String("venue", ve.Venue.Name()),
			slog.String("token", ev.Token.Name),
			slog.String("amount", ev.Amount.String()),
		)

	case domain.Order:
		e.logger.Info("order executed",
			slog.String("venue", ve.Venue.Name()),
			slog.String("side", string(ev.Side)),
			slog.String("amount", ev.Amount.String()),
			slog.String("price", ev.Price.String()),
		)
		if e.coord.Resolve(ve.Venue, ev) {
			e.notify(ctx, notify.EventOrderFilled, "Arbitrage pair complete",
				fmt.Sprintf("both legs filled for %s", ev.Symbol))
		}

	case domain.Ticker:
		e.onTicker(ctx, ev, ve.Venue)
	}
}

// onTicker updates the running extrema and, when the state allows it, hands
// the best quotes to the decision stage.
func (e *Engine) onTicker(ctx context.Context, t domain.Ticker, venue domain.Venue) {
	ex, ok := venue.(exchange.Exchange)
	if !ok {
		return
	}

	// Buy where the ask is lowest; ties go to the fresher observation.
	if e.bestAsk == nil || t.Ask.LessThanOrEqual(e.bestAsk.Ask) {
		e.bestAsk = &t
		e.bestAskVenue = ex
		e.logger.Debug("new best ask",
			slog.String("venue", ex.Name()),
			slog.String("ask", t.Ask.String()),
		)
	}
	// Sell where the bid is highest.
	if e.bestBid == nil || t.Bid.GreaterThanOrEqual(e.bestBid.Bid) {
		e.bestBid = &t
		e.bestBidVenue = ex
		e.logger.Debug("new best bid",
			slog.String("venue", ex.Name()),
			slog.String("bid", t.Bid.String()),
		)
	}

	// Both extrema on one venue means there is nothing to cross.
	if e.bestAskVenue == e.bestBidVenue {
		return
	}

	// Never evaluate while a leg is outstanding; tracking above still ran,
	// so the next idle evaluation sees fresh extrema.
	if e.coord.InFlight() {
		return
	}

	profitable, spread := e.spread.Evaluate(*e.bestAsk, *e.bestBid)
	e.logger.Debug("spread evaluated",
		slog.String("spread", spread.String()),
		slog.String("best_ask", e.bestAsk.Ask.String()),
		slog.String("best_bid", e.bestBid.Bid.String()),
	)
	if !profitable {
		return
	}

	e.logger.Info("opportunity detected",
		slog.String("spread", spread.String()),
		slog.String("ask_venue", e.bestAskVenue.Name()),
		slog.String("bid_venue", e.bestBidVenue.Name()),
	)

	// Buying on the ask venue spends its quote balance; selling on the bid
	// venue spends its base balance.
	askWallet := e.wallet(e.bestAskVenue, e.symbol.Quote)
	bidWallet := e.wallet(e.bestBidVenue, e.symbol.Base)

	amount, ok := e.amount.Calculate(*e.bestAsk, *e.bestBid, askWallet, bidWallet)
	if !ok {
		e.logger.Debug("amount below minimum, skipping",
			slog.String("ask_venue", e.bestAskVenue.Name()),
			slog.String("bid_venue", e.bestBidVenue.Name()),
		)
		return
	}

	opp := Opportunity{
		ID:       uuid.New().String(),
		Symbol:   e.symbol,
		Amount:   amount,
		Spread:   spread,
		AskVenue: e.bestAskVenue,
		BidVenue: e.bestBidVenue,
		AskQuote: *e.bestAsk,
		BidQuote: *e.bestBid,
	}
	e.notify(ctx, notify.EventOpportunityDetected, "Arbitrage opportunity",
		fmt.Sprintf("%s: spread %s, buy %s on %s, sell on %s",
			e.symbol, spread, amount, opp.AskVenue.Name(), opp.BidVenue.Name()))

	e.coord.Execute(ctx, opp)
	e.notify(ctx, notify.EventLegsSubmitted, "Legs submitted",
		fmt.Sprintf("%s: buy %s on %s at %s, sell on %s at %s",
			e.symbol, amount, opp.AskVenue.Name(), opp.AskQuote.Ask,
			opp.BidVenue.Name(), opp.BidQuote.Bid))
}

// wallet returns the latest stored balance for (venue, token), or a zero
// balance when no Wallet event has arrived yet.
func (e *Engine) wallet(venue domain.Venue, token domain.Token) domain.Wallet {
	if w, ok := e.wallets[walletKey{venue, token.Name}]; ok {
		return w
	}
	return domain.EmptyWallet(token)
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
