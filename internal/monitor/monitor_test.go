package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbcore/arbot/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeVenue only needs a name for monitor tests.
type fakeVenue struct{ name string }

func (f fakeVenue) Name() string { return f.name }

// recordingStore collects appended rows and signals each batch.
type recordingStore struct {
	mu      sync.Mutex
	rows    []domain.SpreadObservation
	batches chan int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{batches: make(chan int, 16)}
}

func (s *recordingStore) Append(_ context.Context, obs []domain.SpreadObservation) error {
	s.mu.Lock()
	s.rows = append(s.rows, obs...)
	s.mu.Unlock()
	s.batches <- len(obs)
	return nil
}

func (s *recordingStore) ListBefore(context.Context, time.Time, int) ([]domain.SpreadObservation, error) {
	return nil, nil
}

func (s *recordingStore) DeleteThrough(context.Context, int64) (int64, error) {
	return 0, nil
}

// recordingCache collects published quotes.
type recordingCache struct {
	mu     sync.Mutex
	quotes map[string]domain.VenueQuote
}

func (c *recordingCache) SetQuote(_ context.Context, venue string, q domain.VenueQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quotes == nil {
		c.quotes = make(map[string]domain.VenueQuote)
	}
	c.quotes[venue] = q
	return nil
}

func (c *recordingCache) GetQuote(_ context.Context, venue string) (domain.VenueQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[venue]
	if !ok {
		return domain.VenueQuote{}, domain.ErrNotFound
	}
	return q, nil
}

func waitBatch(t *testing.T, store *recordingStore) int {
	t.Helper()
	select {
	case n := <-store.batches:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("expected a spread batch")
		return 0
	}
}

func TestMonitorRecordsPairwiseSpreads(t *testing.T) {
	events := make(chan domain.VenueEvent, 16)
	store := newRecordingStore()
	cache := &recordingCache{}

	m := New(events, store, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	// First venue alone: nothing to compare against.
	events <- domain.VenueEvent{
		Venue: fakeVenue{"cex"},
		Event: domain.Ticker{
			Raw: map[string]any{"lastPrice": "101"},
			Bid: d("100"), Ask: d("102"),
		},
	}

	// Second venue produces exactly one pair row.
	events <- domain.VenueEvent{
		Venue: fakeVenue{"dex"},
		Event: domain.Ticker{
			Raw: map[string]any{"lastPrice": "105"},
			Bid: d("99"), Ask: d("103"),
		},
	}

	require.Equal(t, 1, waitBatch(t, store))

	store.mu.Lock()
	obs := store.rows[0]
	store.mu.Unlock()

	// The updating venue is side A of every row it triggers.
	assert.Equal(t, "dex", obs.VenueA)
	assert.Equal(t, "cex", obs.VenueB)

	assert.True(t, obs.LastSpread.Equal(d("4")), "last spread = %s", obs.LastSpread)
	assert.True(t, obs.LastSpreadRel.Equal(d("4").Div(d("105"))))

	// Ask(A) - Bid(B) = 103 - 100, relative to Ask(A).
	assert.True(t, obs.AskBidSpreadAB.Equal(d("3")))
	assert.True(t, obs.AskBidSpreadABRel.Equal(d("3").Div(d("103"))))

	// Ask(B) - Bid(A) = 102 - 99, relative to Ask(B).
	assert.True(t, obs.AskBidSpreadBA.Equal(d("3")))
	assert.True(t, obs.AskBidSpreadBARel.Equal(d("3").Div(d("102"))))

	// The quote cache saw both venues.
	_, err := cache.GetQuote(context.Background(), "cex")
	assert.NoError(t, err)
	q, err := cache.GetQuote(context.Background(), "dex")
	require.NoError(t, err)
	assert.True(t, q.Last.Equal(d("105")))

	// A third update compares against every other venue again.
	events <- domain.VenueEvent{
		Venue: fakeVenue{"cex"},
		Event: domain.Ticker{
			Raw: map[string]any{"lastPrice": "102"},
			Bid: d("101"), Ask: d("103"),
		},
	}
	require.Equal(t, 1, waitBatch(t, store))
}

func TestMonitorFallsBackToMidPrice(t *testing.T) {
	events := make(chan domain.VenueEvent, 16)
	store := newRecordingStore()

	m := New(events, store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	events <- domain.VenueEvent{
		Venue: fakeVenue{"a"},
		Event: domain.Ticker{Raw: map[string]any{}, Bid: d("100"), Ask: d("104")},
	}
	events <- domain.VenueEvent{
		Venue: fakeVenue{"b"},
		Event: domain.Ticker{Raw: map[string]any{}, Bid: d("100"), Ask: d("104")},
	}

	require.Equal(t, 1, waitBatch(t, store))
	store.mu.Lock()
	obs := store.rows[0]
	store.mu.Unlock()

	// No venue-reported last price: both sides use the mid, so the last
	// spread is zero.
	assert.True(t, obs.LastA.Equal(d("102")))
	assert.True(t, obs.LastSpread.IsZero())
}

func TestMonitorClosedStreamIsFatal(t *testing.T) {
	events := make(chan domain.VenueEvent)
	store := newRecordingStore()

	m := New(events, store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	errc := make(chan error, 1)
	go func() { errc <- m.Run(context.Background()) }()

	close(events)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, domain.ErrFeedClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the monitor to halt on a closed stream")
	}
}
