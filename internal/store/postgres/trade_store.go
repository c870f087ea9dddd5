package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polywatch/engine/internal/domain"
)

// TradeStore implements domain.Ledger on top of PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given client.
func NewTradeStore(client *Client) *TradeStore {
	return &TradeStore{pool: client.Pool()}
}

const insertTradeSQL = `
	INSERT INTO trades (
		transaction_hash, market_id, token_id, proxy_wallet, side,
		price, size, amount, outcome, outcome_index,
		market_title, market_slug, market_icon, match_time
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (transaction_hash) DO NOTHING`

// InsertTrade appends a trade to the ledger. The unique constraint on
// transaction_hash makes the dedup check and the insert a single atomic
// statement, so concurrent writers racing on the same hash yield exactly
// one stored row.
func (s *TradeStore) InsertTrade(ctx context.Context, t domain.Trade) (bool, error) {
	if t.TransactionHash == "" || !t.Side.Valid() {
		return false, fmt.Errorf("postgres: insert trade: %w", domain.ErrInvalidTrade)
	}

	tag, err := s.pool.Exec(ctx, insertTradeSQL,
		t.TransactionHash, t.MarketID, t.TokenID, t.ProxyWallet, string(t.Side),
		t.Price, t.Size, t.Amount, t.Outcome, t.OutcomeIndex,
		t.MarketTitle, t.MarketSlug, t.MarketIcon, t.MatchTime,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert trade: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const tradeColumns = `
	t.id, t.transaction_hash, t.market_id, t.token_id, t.proxy_wallet, t.side,
	t.price, t.size, t.amount, t.outcome, t.outcome_index,
	t.market_title, t.market_slug, t.market_icon, t.match_time`

// QueryTrades returns trades matching the filter, newest first, each joined
// with whatever profile fields the traders table holds for its wallet.
func (s *TradeStore) QueryTrades(ctx context.Context, f domain.TradeFilter) ([]domain.TradeRow, error) {
	var (
		where []string
		args  []any
	)
	if f.MarketID != "" {
		args = append(args, f.MarketID)
		where = append(where, fmt.Sprintf("t.market_id = $%d", len(args)))
	}
	if f.Wallet != "" {
		args = append(args, f.Wallet)
		where = append(where, fmt.Sprintf("t.proxy_wallet = $%d", len(args)))
	}
	if f.MinAmount > 0 {
		args = append(args, f.MinAmount)
		where = append(where, fmt.Sprintf("t.amount >= $%d", len(args)))
	}

	query := `SELECT` + tradeColumns + `,
		COALESCE(p.name, ''), COALESCE(p.pseudonym, ''), COALESCE(p.profile_image, '')
	FROM trades t
	LEFT JOIN traders p ON p.proxy_wallet = t.proxy_wallet`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.match_time DESC, t.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRow
	for rows.Next() {
		var (
			r    domain.TradeRow
			side string
		)
		err := rows.Scan(
			&r.ID, &r.TransactionHash, &r.MarketID, &r.TokenID, &r.ProxyWallet, &side,
			&r.Price, &r.Size, &r.Amount, &r.Outcome, &r.OutcomeIndex,
			&r.MarketTitle, &r.MarketSlug, &r.MarketIcon, &r.MatchTime,
			&r.TraderName, &r.TraderPseudonym, &r.TraderImage,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		r.Side = domain.Side(side)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query trades: %w", err)
	}
	return out, nil
}

// ListWalletTrades returns every trade for a wallet in chronological order,
// the order position replay requires.
func (s *TradeStore) ListWalletTrades(ctx context.Context, wallet string) ([]domain.Trade, error) {
	query := `SELECT` + tradeColumns + `
	FROM trades t
	WHERE t.proxy_wallet = $1
	ORDER BY t.match_time ASC, t.id ASC`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallet trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t    domain.Trade
			side string
		)
		err := rows.Scan(
			&t.ID, &t.TransactionHash, &t.MarketID, &t.TokenID, &t.ProxyWallet, &side,
			&t.Price, &t.Size, &t.Amount, &t.Outcome, &t.OutcomeIndex,
			&t.MarketTitle, &t.MarketSlug, &t.MarketIcon, &t.MatchTime,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wallet trade: %w", err)
		}
		t.Side = domain.Side(side)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wallet trades: %w", err)
	}
	return out, nil
}

// AggregateStats computes the ledger summary in one scan. MVCC gives the
// scan a consistent snapshot, so the counts and sums always agree with
// each other even while inserts land concurrently.
func (s *TradeStore) AggregateStats(ctx context.Context, marketID string) (domain.StatsSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(AVG(amount), 0),
			COALESCE(MAX(amount), 0),
			COUNT(DISTINCT proxy_wallet)
		FROM trades`
	var args []any
	if marketID != "" {
		query += " WHERE market_id = $1"
		args = append(args, marketID)
	}

	var out domain.StatsSummary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&out.TotalTrades, &out.TotalVolume, &out.AvgTradeSize,
		&out.LargestTrade, &out.UniqueTraders,
	)
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("postgres: aggregate stats: %w", err)
	}
	return out, nil
}

// VolumeByOutcome returns the outcome x side breakdown ordered by outcome
// then side for a stable response shape.
func (s *TradeStore) VolumeByOutcome(ctx context.Context, marketID string) ([]domain.OutcomeVolume, error) {
	query := `
		SELECT outcome, side, COUNT(*), COALESCE(SUM(amount), 0), COALESCE(AVG(price), 0)
		FROM trades`
	var args []any
	if marketID != "" {
		query += " WHERE market_id = $1"
		args = append(args, marketID)
	}
	query += " GROUP BY outcome, side ORDER BY outcome ASC, side ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: volume by outcome: %w", err)
	}
	defer rows.Close()

	var out []domain.OutcomeVolume
	for rows.Next() {
		var (
			v    domain.OutcomeVolume
			side string
		)
		if err := rows.Scan(&v.Outcome, &side, &v.TradeCount, &v.Volume, &v.AvgPrice); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome volume: %w", err)
		}
		v.Side = domain.Side(side)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: volume by outcome: %w", err)
	}
	return out, nil
}

// TopTraders ranks wallets by total volume descending, wallet address
// ascending on equal volume so the ordering is deterministic.
func (s *TradeStore) TopTraders(ctx context.Context, marketID string, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT
			t.proxy_wallet,
			COALESCE(p.name, ''), COALESCE(p.pseudonym, ''), COALESCE(p.profile_image, ''),
			COUNT(*),
			COALESCE(SUM(t.amount), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.side = 'BUY'), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.side = 'SELL'), 0),
			COALESCE(MAX(t.amount), 0),
			COALESCE(MAX(t.match_time), 0)
		FROM trades t
		LEFT JOIN traders p ON p.proxy_wallet = t.proxy_wallet`
	var args []any
	if marketID != "" {
		query += " WHERE t.market_id = $1"
		args = append(args, marketID)
	}
	query += `
		GROUP BY t.proxy_wallet, p.name, p.pseudonym, p.profile_image
		ORDER BY SUM(t.amount) DESC, t.proxy_wallet ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: top traders: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		err := rows.Scan(
			&e.ProxyWallet, &e.Name, &e.Pseudonym, &e.ProfileImage,
			&e.TradeCount, &e.TotalVolume, &e.BuyVolume, &e.SellVolume,
			&e.LargestTrade, &e.LastTradeTime,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: top traders: %w", err)
	}
	return out, nil
}

// DistinctWallets lists every wallet present in the ledger.
func (s *TradeStore) DistinctWallets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT proxy_wallet FROM trades ORDER BY proxy_wallet ASC")
	if err != nil {
		return nil, fmt.Errorf("postgres: distinct wallets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: distinct wallets: %w", err)
	}
	return out, nil
}
