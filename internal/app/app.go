// Package app wires the service together and manages its lifecycle: the
// REST poller, the stream subscriber, the profile refresher, the ledger
// archiver, and the HTTP API all run as one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polywatch/engine/internal/analytics"
	s3blob "github.com/polywatch/engine/internal/blob/s3"
	"github.com/polywatch/engine/internal/config"
	"github.com/polywatch/engine/internal/ingest"
	"github.com/polywatch/engine/internal/profile"
	"github.com/polywatch/engine/internal/server"
	"github.com/polywatch/engine/internal/server/handler"
)

// shutdownTimeout bounds how long in-flight HTTP requests may run after a
// termination signal.
const shutdownTimeout = 10 * time.Second

// App is the root application object.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts every loop, and blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("market", a.cfg.Market.ConditionID),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	engine := analytics.NewEngine(deps.Ledger, a.cfg.Ingest.WhaleThreshold, a.logger)

	poller := ingest.NewPoller(
		ingest.PollerConfig{
			ConditionID:    a.cfg.Market.ConditionID,
			Interval:       a.cfg.Ingest.PollInterval.Duration,
			PageLimit:      a.cfg.Ingest.PageLimit,
			WhaleThreshold: a.cfg.Ingest.WhaleThreshold,
		},
		deps.DataClient, deps.Ledger, deps.Profiles, deps.Notifier, a.logger,
	)

	subscriber := ingest.NewSubscriber(
		ingest.SubscriberConfig{
			ConditionID: a.cfg.Market.ConditionID,
			TokenIDs:    a.cfg.Market.TokenIDs,
		},
		deps.StreamClient, deps.Ledger, a.logger,
	)

	var refresher *profile.Refresher
	if a.cfg.Ingest.ProfileRefreshInterval.Duration > 0 {
		var gate profile.AttemptGate
		if deps.ProfileCache != nil {
			gate = deps.ProfileCache
		}
		refresher = profile.NewRefresher(
			deps.Ledger, deps.Profiles, deps.GammaClient, gate,
			a.cfg.Ingest.ProfileRefreshInterval.Duration, a.logger,
		)
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Trades:  handler.NewTradeHandler(deps.Ledger, engine, a.cfg.Market.ConditionID, a.logger),
			Stats:   handler.NewStatsHandler(deps.Ledger, engine, a.cfg.Market.ConditionID, a.logger),
			Traders: handler.NewTraderHandler(engine, a.cfg.Market.ConditionID, a.logger),
			Wallet:  handler.NewWalletHandler(deps.Ledger, deps.Profiles, engine, a.logger),
			Export:  handler.NewExportHandler(deps.Ledger, a.cfg.Market.ConditionID, a.logger),
			Status:  handler.NewStatusHandler(a.cfg.Market.ConditionID, poller, subscriber, refresher),
		},
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return subscriber.Run(gctx) })

	if refresher != nil {
		g.Go(func() error { return refresher.Run(gctx) })
	}

	if deps.ArchiveWriter != nil {
		archiver := s3blob.NewArchiver(
			deps.Ledger, deps.ArchiveWriter,
			a.cfg.Market.ConditionID,
			a.cfg.S3.ArchiveInterval.Duration,
			a.logger,
		)
		g.Go(func() error { return archiver.Run(gctx) })
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
