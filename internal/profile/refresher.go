// Package profile fills in trader display metadata for wallets the ledger
// has seen. Most identities arrive embedded in trade records; this package's
// refresher covers the rest with periodic Gamma API lookups.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// Fetcher is the slice of the Gamma client the refresher needs.
type Fetcher interface {
	GetProfile(ctx context.Context, wallet string) (domain.TraderProfile, error)
}

// AttemptGate suppresses repeat lookups for wallets recently tried. A nil
// gate disables suppression.
type AttemptGate interface {
	ShouldAttempt(ctx context.Context, wallet string) (bool, error)
	MarkAttempt(ctx context.Context, wallet string) error
}

// RefresherStats is a snapshot of the refresher's counters.
type RefresherStats struct {
	Runs        int64 `json:"runs"`
	Refreshed   int64 `json:"profiles_refreshed"`
	LastRunUnix int64 `json:"last_run_unix"`
}

// Refresher periodically walks the ledger's wallets and fetches profiles
// for the ones still missing an identity. It never blocks ingestion; every
// failure is logged and retried after the gate's TTL lapses.
type Refresher struct {
	ledger   domain.Ledger
	profiles domain.ProfileStore
	fetcher  Fetcher
	gate     AttemptGate
	interval time.Duration
	logger   *slog.Logger

	runs        atomic.Int64
	refreshed   atomic.Int64
	lastRunUnix atomic.Int64
}

// NewRefresher creates a Refresher. gate may be nil.
func NewRefresher(
	ledger domain.Ledger,
	profiles domain.ProfileStore,
	fetcher Fetcher,
	gate AttemptGate,
	interval time.Duration,
	logger *slog.Logger,
) *Refresher {
	return &Refresher{
		ledger:   ledger,
		profiles: profiles,
		fetcher:  fetcher,
		gate:     gate,
		interval: interval,
		logger:   logger.With(slog.String("component", "profile-refresher")),
	}
}

// Run refreshes on every tick until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "profile refresher started",
		slog.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "profile refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Stats returns a snapshot of the refresher's counters.
func (r *Refresher) Stats() RefresherStats {
	return RefresherStats{
		Runs:        r.runs.Load(),
		Refreshed:   r.refreshed.Load(),
		LastRunUnix: r.lastRunUnix.Load(),
	}
}

// refresh performs one pass over the ledger's wallets.
func (r *Refresher) refresh(ctx context.Context) {
	wallets, err := r.ledger.DistinctWallets(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "wallet listing failed",
			slog.String("error", err.Error()),
		)
		return
	}

	var refreshed int64
	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return
		}
		if r.refreshOne(ctx, wallet) {
			refreshed++
		}
	}

	r.runs.Add(1)
	r.refreshed.Add(refreshed)
	r.lastRunUnix.Store(time.Now().Unix())

	if refreshed > 0 {
		r.logger.InfoContext(ctx, "refresh pass complete",
			slog.Int("wallets", len(wallets)),
			slog.Int64("refreshed", refreshed),
		)
	}
}

// refreshOne resolves one wallet and reports whether a profile was stored.
func (r *Refresher) refreshOne(ctx context.Context, wallet string) bool {
	stored, err := r.profiles.GetProfile(ctx, wallet)
	if err == nil && stored.HasIdentity() {
		return false
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.WarnContext(ctx, "profile lookup failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return false
	}

	if r.gate != nil {
		due, err := r.gate.ShouldAttempt(ctx, wallet)
		if err != nil {
			r.logger.WarnContext(ctx, "attempt gate check failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		} else if !due {
			return false
		}
	}

	fetched, fetchErr := r.fetcher.GetProfile(ctx, wallet)

	if r.gate != nil {
		if err := r.gate.MarkAttempt(ctx, wallet); err != nil {
			r.logger.WarnContext(ctx, "attempt mark failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
	}

	if fetchErr != nil {
		if !errors.Is(fetchErr, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "profile fetch failed",
				slog.String("wallet", wallet),
				slog.String("error", fetchErr.Error()),
			)
		}
		return false
	}
	if !fetched.HasIdentity() {
		return false
	}

	if err := r.profiles.UpsertProfile(ctx, fetched); err != nil {
		r.logger.WarnContext(ctx, "profile upsert failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
