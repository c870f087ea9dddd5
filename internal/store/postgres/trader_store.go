package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polywatch/engine/internal/domain"
)

// TraderStore implements domain.ProfileStore on top of PostgreSQL.
type TraderStore struct {
	pool *pgxpool.Pool
}

// NewTraderStore creates a TraderStore backed by the given client.
func NewTraderStore(client *Client) *TraderStore {
	return &TraderStore{pool: client.Pool()}
}

const upsertProfileSQL = `
	INSERT INTO traders (
		proxy_wallet, name, pseudonym, profile_image, bio, last_updated
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (proxy_wallet) DO UPDATE SET
		name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE traders.name END,
		pseudonym = CASE WHEN EXCLUDED.pseudonym <> '' THEN EXCLUDED.pseudonym ELSE traders.pseudonym END,
		profile_image = CASE WHEN EXCLUDED.profile_image <> '' THEN EXCLUDED.profile_image ELSE traders.profile_image END,
		bio = CASE WHEN EXCLUDED.bio <> '' THEN EXCLUDED.bio ELSE traders.bio END,
		last_updated = EXCLUDED.last_updated`

// UpsertProfile creates or refreshes a wallet's profile row. Empty incoming
// fields never overwrite stored values, so a sparse stream record cannot
// erase metadata a richer Gamma fetch already filled in.
func (s *TraderStore) UpsertProfile(ctx context.Context, p domain.TraderProfile) error {
	if p.ProxyWallet == "" {
		return fmt.Errorf("postgres: upsert profile: %w", domain.ErrInvalidTrade)
	}

	_, err := s.pool.Exec(ctx, upsertProfileSQL,
		p.ProxyWallet, p.Name, p.Pseudonym, p.ProfileImage, p.Bio, p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile: %w", err)
	}
	return nil
}

// GetProfile looks up a wallet's profile, returning domain.ErrNotFound for
// a wallet the store has never seen.
func (s *TraderStore) GetProfile(ctx context.Context, wallet string) (domain.TraderProfile, error) {
	const query = `
		SELECT proxy_wallet, name, pseudonym, profile_image, bio,
			num_trades, pnl_cumulative, last_updated
		FROM traders
		WHERE proxy_wallet = $1`

	var p domain.TraderProfile
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&p.ProxyWallet, &p.Name, &p.Pseudonym, &p.ProfileImage, &p.Bio,
		&p.NumTrades, &p.PnLCumulative, &p.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TraderProfile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TraderProfile{}, fmt.Errorf("postgres: get profile: %w", err)
	}
	return p, nil
}
