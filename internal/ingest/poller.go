// Package ingest contains the two trade ingestion loops: the REST poller
// and the WebSocket stream subscriber. Both normalize upstream records into
// domain trades and write through the ledger, which deduplicates by
// transaction hash, so the loops never coordinate with each other.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/notify"
	"github.com/polywatch/engine/internal/platform/polymarket"
)

// TradeFetcher is the slice of the Data API client the poller needs.
type TradeFetcher interface {
	GetTrades(ctx context.Context, conditionID string, limit int) ([]polymarket.APITrade, error)
}

// PollerConfig holds the poller's market and cadence settings.
type PollerConfig struct {
	ConditionID    string
	Interval       time.Duration
	PageLimit      int
	WhaleThreshold float64
}

// PollerStats is a snapshot of the poller's counters for the status endpoint.
type PollerStats struct {
	PollCount    int64 `json:"poll_count"`
	LastPollUnix int64 `json:"last_poll_unix"`
	NewTrades    int64 `json:"new_trades_total"`
}

// Poller periodically fetches the market's recent trades over REST and
// appends the ones the ledger has not seen.
type Poller struct {
	cfg      PollerConfig
	fetcher  TradeFetcher
	ledger   domain.Ledger
	profiles domain.ProfileStore
	notifier *notify.Notifier
	logger   *slog.Logger

	pollCount    atomic.Int64
	lastPollUnix atomic.Int64
	newTrades    atomic.Int64
}

// NewPoller creates a Poller. notifier may be nil when alerting is disabled.
func NewPoller(
	cfg PollerConfig,
	fetcher TradeFetcher,
	ledger domain.Ledger,
	profiles domain.ProfileStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		cfg:      cfg,
		fetcher:  fetcher,
		ledger:   ledger,
		profiles: profiles,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "poller")),
	}
}

// Run polls immediately, then on every tick until ctx is canceled. Fetch
// failures are logged and retried on the next tick, never propagated.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "poller started",
		slog.String("market", p.cfg.ConditionID),
		slog.Duration("interval", p.cfg.Interval),
	)

	p.poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stats returns a snapshot of the poller's counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		PollCount:    p.pollCount.Load(),
		LastPollUnix: p.lastPollUnix.Load(),
		NewTrades:    p.newTrades.Load(),
	}
}

// poll fetches one page and stores whatever is new. A malformed record
// skips only itself.
func (p *Poller) poll(ctx context.Context) {
	raw, err := p.fetcher.GetTrades(ctx, p.cfg.ConditionID, p.cfg.PageLimit)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.WarnContext(ctx, "trade fetch failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	var newCount int64
	for i := range raw {
		trade, err := raw[i].ToDomainTrade(p.cfg.ConditionID)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping malformed trade record",
				slog.String("error", err.Error()),
			)
			continue
		}

		inserted, err := p.ledger.InsertTrade(ctx, trade)
		if err != nil {
			p.logger.ErrorContext(ctx, "trade insert failed",
				slog.String("tx_hash", trade.TransactionHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !inserted {
			continue
		}
		newCount++

		if profile, ok := raw[i].ToDomainProfile(); ok && profile.HasIdentity() {
			if err := p.profiles.UpsertProfile(ctx, profile); err != nil {
				p.logger.WarnContext(ctx, "profile upsert failed",
					slog.String("wallet", profile.ProxyWallet),
					slog.String("error", err.Error()),
				)
			}
		}

		if p.notifier != nil && p.cfg.WhaleThreshold > 0 && trade.Amount >= p.cfg.WhaleThreshold {
			identity := raw[i].Name
			if identity == "" {
				identity = raw[i].Pseudonym
			}
			if err := p.notifier.WhaleTrade(ctx, trade, identity); err != nil {
				p.logger.WarnContext(ctx, "whale alert failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	count := p.pollCount.Add(1)
	p.lastPollUnix.Store(time.Now().Unix())
	p.newTrades.Add(newCount)

	if newCount > 0 {
		p.logger.InfoContext(ctx, "poll complete",
			slog.Int64("poll", count),
			slog.Int64("new_trades", newCount),
			slog.Int("fetched", len(raw)),
		)
	} else {
		p.logger.DebugContext(ctx, "poll complete, nothing new",
			slog.Int64("poll", count),
			slog.Int("fetched", len(raw)),
		)
	}
}
