package domain

import "context"

// Ledger is the single source of truth for trade records. Implementations
// must make InsertTrade safe under concurrent writers: the dedup check and
// the insert are one atomic operation.
type Ledger interface {
	// InsertTrade appends a trade and reports whether it was newly inserted.
	// A colliding TransactionHash is a no-op returning false, not an error.
	InsertTrade(ctx context.Context, t Trade) (bool, error)

	// QueryTrades returns rows matching the filter, newest first
	// (match_time descending, insertion order as tie-break).
	QueryTrades(ctx context.Context, f TradeFilter) ([]TradeRow, error)

	// ListWalletTrades returns every trade for a wallet, oldest first, for
	// position replay.
	ListWalletTrades(ctx context.Context, wallet string) ([]Trade, error)

	// AggregateStats computes the summary directly from stored rows.
	// An empty marketID aggregates across all markets.
	AggregateStats(ctx context.Context, marketID string) (StatsSummary, error)

	// VolumeByOutcome returns the outcome x side breakdown.
	VolumeByOutcome(ctx context.Context, marketID string) ([]OutcomeVolume, error)

	// TopTraders ranks wallets by total volume descending, wallet ascending
	// on ties.
	TopTraders(ctx context.Context, marketID string, limit int) ([]LeaderboardEntry, error)

	// DistinctWallets lists every wallet that appears in the ledger.
	DistinctWallets(ctx context.Context) ([]string, error)
}

// ProfileStore is the trader-profile side table.
type ProfileStore interface {
	// UpsertProfile creates or refreshes the metadata fields for a wallet.
	// Empty incoming fields never overwrite stored values.
	UpsertProfile(ctx context.Context, p TraderProfile) error

	// GetProfile returns ErrNotFound for an unseen wallet.
	GetProfile(ctx context.Context, wallet string) (TraderProfile, error)
}
