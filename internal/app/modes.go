package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/arbcore/arbot/internal/blob/s3"
	"github.com/arbcore/arbot/internal/engine"
	"github.com/arbcore/arbot/internal/feed"
	"github.com/arbcore/arbot/internal/monitor"
	"github.com/arbcore/arbot/internal/notify"
	"github.com/arbcore/arbot/internal/strategy"
)

// ArbitrageMode runs the trading loop: the multiplexed venue feeds, the
// decision engine, and paired-leg execution.
func (a *App) ArbitrageMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting arbitrage mode")

	threshold, maxAmount, minAmount, err := a.cfg.Trading.Decimals()
	if err != nil {
		return fmt.Errorf("app: trading parameters: %w", err)
	}

	reg := strategy.NewRegistry()
	reg.RegisterSpread(strategy.NewSimpleSpread(threshold))
	reg.RegisterAmount(strategy.NewSimpleAmount(maxAmount, minAmount))

	spread, err := reg.Spread(a.cfg.Trading.SpreadStrategy)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	amount, err := reg.Amount(a.cfg.Trading.AmountStrategy)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	mux := feed.NewMux(a.logger)
	for _, v := range deps.Venues {
		mux.Register(v)
	}

	coord := engine.NewCoordinator(a.logger)
	eng := engine.New(mux.Events(), deps.Symbol, spread, amount, coord, deps.Notifier, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mux.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })

	for _, v := range deps.Venues {
		if err := v.SubscribeTicker(gctx, deps.Symbol, maxAmount); err != nil {
			return fmt.Errorf("app: subscribe ticker on %s: %w", v.Name(), err)
		}
		if err := v.SubscribeWallet(gctx, deps.Symbol); err != nil {
			return fmt.Errorf("app: subscribe wallet on %s: %w", v.Name(), err)
		}
	}

	return a.wait(ctx, g, deps)
}

// MonitorMode runs the observation loop: venue feeds, the pairwise spread
// recorder, and (when object storage is configured) the history archiver. No
// orders are ever placed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	_, maxAmount, _, err := a.cfg.Trading.Decimals()
	if err != nil {
		return fmt.Errorf("app: trading parameters: %w", err)
	}

	mux := feed.NewMux(a.logger)
	for _, v := range deps.Venues {
		mux.Register(v)
	}

	mon := monitor.New(mux.Events(), deps.SpreadStore, deps.QuoteCache, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mux.Run(gctx) })
	g.Go(func() error { return mon.Run(gctx) })

	if deps.BlobWriter != nil {
		retention := time.Duration(a.cfg.Monitor.RetentionDays) * 24 * time.Hour
		archiver := s3blob.NewArchiver(
			deps.BlobWriter, deps.SpreadStore,
			retention, a.cfg.Monitor.ArchiveInterval.Duration,
			a.logger,
		)
		g.Go(func() error { return archiver.Run(gctx) })
	}

	for _, v := range deps.Venues {
		if err := v.SubscribeTicker(gctx, deps.Symbol, maxAmount); err != nil {
			return fmt.Errorf("app: subscribe ticker on %s: %w", v.Name(), err)
		}
	}

	return a.wait(ctx, g, deps)
}

// wait blocks on the mode's goroutines and pushes a fatal-error notification
// for anything other than a clean shutdown.
func (a *App) wait(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.ErrorContext(ctx, "mode failed", slog.String("error", err.Error()))

	// The run context is already cancelled by the time the failure surfaces;
	// give the notification its own short deadline.
	nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if nerr := deps.Notifier.Notify(nctx, notify.EventFatalError, "Bot stopped", err.Error()); nerr != nil {
		a.logger.Warn("fatal-error notification failed", slog.String("error", nerr.Error()))
	}
	return err
}
