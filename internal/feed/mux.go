// Package feed merges the private event streams of every registered venue
// into one consumer-facing stream of venue-tagged events.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arbcore/arbot/internal/domain"
	"github.com/arbcore/arbot/internal/exchange"
)

// Mux fans in N venue streams into a single merged stream. One forwarding
// goroutine drains each source; an internal unbounded queue decouples
// producers from the single consumer so no event is ever dropped, whatever
// the relative rates. Per-source order is preserved; cross-source order is
// arrival order only.
type Mux struct {
	sources []exchange.Exchange
	out     chan domain.VenueEvent
	logger  *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	queue []domain.VenueEvent
	done  bool
}

// NewMux creates an empty multiplexer. Sources are added with Register
// before Run is called.
func NewMux(logger *slog.Logger) *Mux {
	m := &Mux{
		out:    make(chan domain.VenueEvent),
		logger: logger.With(slog.String("component", "mux")),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Register adds a venue stream to the merge set. Must be called before Run.
func (m *Mux) Register(src exchange.Exchange) {
	m.sources = append(m.sources, src)
}

// Events returns the merged stream. It has exactly one reader: the engine's
// decision loop (or the monitor).
func (m *Mux) Events() <-chan domain.VenueEvent {
	return m.out
}

// Run starts one forwarding goroutine per registered source plus the
// dispatcher, and blocks until the context is cancelled or a source stream
// closes. A closed source is a dead feed and is surfaced as an error; the
// engine cannot reason about cross-venue spreads with a venue missing.
func (m *Mux) Run(ctx context.Context) error {
	m.logger.Info("multiplexer started", slog.Int("sources", len(m.sources)))
	defer m.logger.Info("multiplexer stopped")

	g, gctx := errgroup.WithContext(ctx)

	for _, src := range m.sources {
		src := src
		g.Go(func() error {
			return m.forward(gctx, src)
		})
	}
	g.Go(func() error {
		return m.dispatch(gctx)
	})

	// Wake the dispatcher when the run is torn down so it does not stay
	// parked on the condition variable.
	g.Go(func() error {
		<-gctx.Done()
		m.mu.Lock()
		m.done = true
		m.mu.Unlock()
		m.cond.Broadcast()
		return gctx.Err()
	})

	return g.Wait()
}

// forward drains one source stream into the shared queue.
func (m *Mux) forward(ctx context.Context, src exchange.Exchange) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("mux: venue %s: %w", src.Name(), domain.ErrFeedClosed)
			}
			m.mu.Lock()
			m.queue = append(m.queue, domain.VenueEvent{Event: ev, Venue: src})
			m.mu.Unlock()
			m.cond.Signal()
		}
	}
}

// dispatch pops queued events and delivers them to the output channel.
func (m *Mux) dispatch(ctx context.Context) error {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.done {
			m.cond.Wait()
		}
		if m.done && len(m.queue) == 0 {
			m.mu.Unlock()
			return ctx.Err()
		}
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case m.out <- ev:
		}
	}
}
