package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/notify"
	"github.com/arbcore/arbot/internal/strategy"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// orderCall records one market order submitted to a fake venue.
type orderCall struct {
	venue  string
	side   domain.OrderSide
	amount decimal.Decimal
}

// fakeVenue implements exchange.Exchange for in-process tests. Orders are
// reported on calls; the optional orderErr makes every submission fail.
type fakeVenue struct {
	name     string
	events   chan domain.Event
	calls    chan orderCall
	orderErr error

	mu sync.Mutex
}

func newFakeVenue(name string) *fakeVenue {
	return &fakeVenue{
		name:   name,
		events: make(chan domain.Event, 16),
		calls:  make(chan orderCall, 16),
	}
}

func (f *fakeVenue) Name() string                { return f.name }
func (f *fakeVenue) Events() <-chan domain.Event { return f.events }

func (f *fakeVenue) SubscribeTicker(context.Context, domain.Symbol, decimal.Decimal) error {
	return nil
}
func (f *fakeVenue) SubscribeWallet(context.Context, domain.Symbol) error { return nil }

func (f *fakeVenue) BuyMarketOrder(_ context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return domain.Order{}, f.orderErr
	}
	f.calls <- orderCall{venue: f.name, side: domain.OrderSideBuy, amount: amount}
	return domain.Order{Symbol: symbol, Amount: amount, Side: domain.OrderSideBuy}, nil
}

func (f *fakeVenue) SellMarketOrder(_ context.Context, symbol domain.Symbol, amount decimal.Decimal, _ domain.Ticker) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return domain.Order{}, f.orderErr
	}
	f.calls <- orderCall{venue: f.name, side: domain.OrderSideSell, amount: amount}
	return domain.Order{Symbol: symbol, Amount: amount, Side: domain.OrderSideSell}, nil
}

var testSymbol = domain.Symbol{
	Base:  domain.Token{Name: "ETH", Decimals: 18},
	Quote: domain.Token{Name: "USDC", Decimals: 6},
}

// harness bundles an engine run against two fake venues.
type harness struct {
	events chan domain.VenueEvent
	v1, v2 *fakeVenue
	errc   chan error
	cancel context.CancelFunc
}

func startEngine(t *testing.T) *harness {
	t.Helper()
	return startEngineNotified(t, nil)
}

func startEngineNotified(t *testing.T, notifier *notify.Notifier) *harness {
	t.Helper()

	h := &harness{
		events: make(chan domain.VenueEvent, 64),
		v1:     newFakeVenue("v1"),
		v2:     newFakeVenue("v2"),
		errc:   make(chan error, 1),
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	eng := New(
		h.events, testSymbol,
		strategy.NewSimpleSpread(d("0.02")),
		strategy.NewSimpleAmount(d("100"), d("1")),
		NewCoordinator(logger),
		notifier,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.errc <- eng.Run(ctx) }()
	return h
}

// testWriter routes engine logs through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (h *harness) send(venue *fakeVenue, ev domain.Event) {
	h.events <- domain.VenueEvent{Event: ev, Venue: venue}
}

func (h *harness) fundBoth() {
	h.send(h.v1, domain.Wallet{Token: testSymbol.Quote, Amount: d("1000000")})
	h.send(h.v1, domain.Wallet{Token: testSymbol.Base, Amount: d("1000")})
	h.send(h.v2, domain.Wallet{Token: testSymbol.Quote, Amount: d("1000000")})
	h.send(h.v2, domain.Wallet{Token: testSymbol.Base, Amount: d("1000")})
}

func expectCall(t *testing.T, calls <-chan orderCall) orderCall {
	t.Helper()
	select {
	case c := <-calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected an order submission")
		return orderCall{}
	}
}

func expectNoCall(t *testing.T, venues ...*fakeVenue) {
	t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for _, v := range venues {
		select {
		case c := <-v.calls:
			t.Fatalf("unexpected order on %s: %+v", v.name, c)
		case <-deadline:
		}
	}
}

func TestEngineExecutesProfitableCrossing(t *testing.T) {
	h := startEngine(t)
	h.fundBoth()

	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("99"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})

	// Buy where the ask is lowest, sell where the bid is highest, both for
	// the tightest bound: min(cap 100, ask qty 50, bid qty 60, balances).
	buy := expectCall(t, h.v1.calls)
	assert.Equal(t, domain.OrderSideBuy, buy.side)
	assert.True(t, buy.amount.Equal(d("50")), "buy amount = %s", buy.amount)

	sell := expectCall(t, h.v2.calls)
	assert.Equal(t, domain.OrderSideSell, sell.side)
	assert.True(t, sell.amount.Equal(d("50")))
}

func TestEngineSkipsSingleVenueSpread(t *testing.T) {
	h := startEngine(t)
	h.fundBoth()

	// v2's quote is best on both sides: nothing to cross.
	h.send(h.v1, domain.Ticker{Ask: d("110"), AskAmount: d("50"), Bid: d("90"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("106"), BidAmount: d("50")})

	expectNoCall(t, h.v1, h.v2)
}

func TestEngineTieGoesToNewestObservation(t *testing.T) {
	h := startEngine(t)
	h.fundBoth()

	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("90"), BidAmount: d("50")})
	// Equal ask moves the best-ask venue to v2, which also holds the best
	// bid; the crossing degenerates to a single venue and must not trade.
	h.send(h.v2, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("106"), BidAmount: d("50")})

	expectNoCall(t, h.v1, h.v2)
}

func TestEngineSuppressesEvaluationWhileInFlight(t *testing.T) {
	h := startEngine(t)
	h.fundBoth()

	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("99"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})
	expectCall(t, h.v1.calls)
	expectCall(t, h.v2.calls)

	// Still profitable, but both legs are outstanding.
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("108"), BidAmount: d("60")})
	expectNoCall(t, h.v1, h.v2)

	// One fill is not enough; the pair resolves only when both venues
	// acknowledge.
	h.send(h.v1, domain.Order{Symbol: testSymbol, Amount: d("50"), Side: domain.OrderSideBuy})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("109"), BidAmount: d("60")})
	expectNoCall(t, h.v1, h.v2)

	h.send(h.v2, domain.Order{Symbol: testSymbol, Amount: d("50"), Side: domain.OrderSideSell})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("110"), BidAmount: d("60")})
	expectCall(t, h.v1.calls)
	expectCall(t, h.v2.calls)
}

func TestEngineWalletOverwrite(t *testing.T) {
	h := startEngine(t)

	// Underfunded: the ask-side quote balance converts to less than the
	// minimum tradable amount.
	h.send(h.v1, domain.Wallet{Token: testSymbol.Quote, Amount: d("0.001")})
	h.send(h.v2, domain.Wallet{Token: testSymbol.Base, Amount: d("1000")})
	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("99"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})
	expectNoCall(t, h.v1, h.v2)

	// A fresh snapshot replaces the old one wholly and unblocks sizing.
	h.send(h.v1, domain.Wallet{Token: testSymbol.Quote, Amount: d("1000000")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})
	buy := expectCall(t, h.v1.calls)
	assert.True(t, buy.amount.Equal(d("50")))
	expectCall(t, h.v2.calls)
}

// captureSender records delivered notifications for assertions.
type captureSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func TestEngineNotifiesLegsSubmitted(t *testing.T) {
	sender := &captureSender{}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	notifier := notify.New([]notify.Sender{sender}, []string{notify.EventLegsSubmitted}, logger)

	h := startEngineNotified(t, notifier)
	h.fundBoth()

	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("99"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})
	expectCall(t, h.v1.calls)
	expectCall(t, h.v2.calls)

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.titles) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "Legs submitted", sender.titles[0])
	assert.Contains(t, sender.messages[0], "buy 50 on v1")
	assert.Contains(t, sender.messages[0], "sell on v2")
}

func TestEngineLegFailureIsFatal(t *testing.T) {
	h := startEngine(t)
	h.fundBoth()
	h.v1.orderErr = errors.New("insufficient balance")

	h.send(h.v1, domain.Ticker{Ask: d("100"), AskAmount: d("50"), Bid: d("99"), BidAmount: d("50")})
	h.send(h.v2, domain.Ticker{Ask: d("107"), AskAmount: d("60"), Bid: d("106"), BidAmount: d("60")})

	select {
	case err := <-h.errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "leg execution failed")
	case <-time.After(2 * time.Second):
		t.Fatal("expected the engine to halt on a failed leg")
	}
}

func TestEngineClosedStreamIsFatal(t *testing.T) {
	h := startEngine(t)
	close(h.events)

	select {
	case err := <-h.errc:
		require.ErrorIs(t, err, domain.ErrFeedClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the engine to halt on a closed stream")
	}
}
