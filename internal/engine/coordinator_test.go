package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/arbot/internal/domain"
)

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCoordinatorPendingLifecycle(t *testing.T) {
	c := NewCoordinator(testLogger(t))
	v1 := newFakeVenue("v1")
	v2 := newFakeVenue("v2")

	assert.False(t, c.InFlight())

	c.Execute(context.Background(), Opportunity{
		ID:       "op-1",
		Symbol:   testSymbol,
		Amount:   d("5"),
		AskVenue: v1,
		BidVenue: v2,
	})
	// Both venues are pending from the moment Execute returns, regardless
	// of how far the submission goroutines have gotten.
	assert.True(t, c.InFlight())

	expectCall(t, v1.calls)
	expectCall(t, v2.calls)

	idle := c.Resolve(v1, domain.Order{Side: domain.OrderSideBuy, Amount: d("5")})
	assert.False(t, idle)
	assert.True(t, c.InFlight())

	idle = c.Resolve(v2, domain.Order{Side: domain.OrderSideSell, Amount: d("5")})
	assert.True(t, idle)
	assert.False(t, c.InFlight())
}

func TestCoordinatorResolveUnknownVenue(t *testing.T) {
	c := NewCoordinator(testLogger(t))
	v := newFakeVenue("v1")

	// A fill with no outstanding leg (e.g. a manually placed order) is a
	// no-op.
	assert.False(t, c.Resolve(v, domain.Order{Side: domain.OrderSideBuy}))
	assert.False(t, c.InFlight())
}

func TestCoordinatorReportsLegFailure(t *testing.T) {
	c := NewCoordinator(testLogger(t))
	v1 := newFakeVenue("v1")
	v2 := newFakeVenue("v2")
	v1.orderErr = errors.New("rejected")

	c.Execute(context.Background(), Opportunity{
		ID:       "op-2",
		Symbol:   testSymbol,
		Amount:   d("5"),
		AskVenue: v1,
		BidVenue: v2,
	})

	select {
	case err := <-c.LegFailures():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "buy leg on v1")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a leg failure report")
	}

	// The healthy sell leg still went out.
	expectCall(t, v2.calls)
}
