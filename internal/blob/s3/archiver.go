package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/export"
)

// Uploader is the slice of Writer the archiver needs.
type Uploader interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver periodically snapshots the market's full trade ledger to CSV and
// uploads it. It only ever reads; no object or ledger row is deleted.
type Archiver struct {
	ledger   domain.Ledger
	uploader Uploader
	marketID string
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver snapshotting the given market.
func NewArchiver(ledger domain.Ledger, uploader Uploader, marketID string, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		ledger:   ledger,
		uploader: uploader,
		marketID: marketID,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run snapshots on every tick until ctx is canceled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", a.interval),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx); err != nil {
				a.logger.WarnContext(ctx, "archive snapshot failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ArchiveOnce snapshots the ledger once. An empty ledger is skipped, not an
// error.
func (a *Archiver) ArchiveOnce(ctx context.Context) error {
	rows, err := a.ledger.QueryTrades(ctx, domain.TradeFilter{MarketID: a.marketID})
	if err != nil {
		return fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(rows) == 0 {
		a.logger.DebugContext(ctx, "nothing to archive")
		return nil
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		return fmt.Errorf("s3blob: archive encode: %w", err)
	}

	key := a.objectKey(time.Now().UTC())
	if err := a.uploader.Put(ctx, key, &buf, "text/csv"); err != nil {
		return fmt.Errorf("s3blob: archive upload: %w", err)
	}

	a.logger.InfoContext(ctx, "ledger snapshot archived",
		slog.String("key", key),
		slog.Int("rows", len(rows)),
	)
	return nil
}

// objectKey builds the archive key, unique even when two snapshots land in
// the same second.
func (a *Archiver) objectKey(now time.Time) string {
	return fmt.Sprintf("archive/trades/%s/%s-%s.csv",
		a.marketID,
		now.Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
}
