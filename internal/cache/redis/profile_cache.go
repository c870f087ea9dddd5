package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polywatch/engine/internal/domain"
)

// ProfileCache gates and caches Gamma profile lookups.
//
// Key schema:
//
//	profile:{wallet}          - JSON-serialized TraderProfile
//	profile:attempt:{wallet}  - marker set after a lookup, TTL-gated
//
// The attempt marker covers failed and empty lookups too, so a wallet with
// no upstream profile is not re-fetched on every refresher pass.
type ProfileCache struct {
	rdb        *redis.Client
	profileTTL time.Duration
	attemptTTL time.Duration
}

// NewProfileCache creates a ProfileCache backed by the given Client.
// attemptTTL is how long a lookup attempt suppresses re-fetching.
func NewProfileCache(c *Client, attemptTTL time.Duration) *ProfileCache {
	return &ProfileCache{
		rdb:        c.Underlying(),
		profileTTL: 7 * 24 * time.Hour,
		attemptTTL: attemptTTL,
	}
}

func profileKey(wallet string) string { return "profile:" + wallet }
func attemptKey(wallet string) string { return "profile:attempt:" + wallet }

// Set stores a profile under the value key. The attempt marker is managed
// separately via MarkAttempt so cache fills never suppress refresher lookups.
func (pc *ProfileCache) Set(ctx context.Context, p domain.TraderProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal profile %s: %w", p.ProxyWallet, err)
	}
	if err := pc.rdb.Set(ctx, profileKey(p.ProxyWallet), data, pc.profileTTL).Err(); err != nil {
		return fmt.Errorf("redis: set profile %s: %w", p.ProxyWallet, err)
	}
	return nil
}

// Get retrieves a cached profile. It returns domain.ErrNotFound when the
// wallet is not cached.
func (pc *ProfileCache) Get(ctx context.Context, wallet string) (domain.TraderProfile, error) {
	data, err := pc.rdb.Get(ctx, profileKey(wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TraderProfile{}, domain.ErrNotFound
		}
		return domain.TraderProfile{}, fmt.Errorf("redis: get profile %s: %w", wallet, err)
	}

	var p domain.TraderProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.TraderProfile{}, fmt.Errorf("redis: unmarshal profile %s: %w", wallet, err)
	}
	return p, nil
}

// MarkAttempt records that a lookup was made for the wallet, successful or
// not, suppressing further lookups until the TTL lapses.
func (pc *ProfileCache) MarkAttempt(ctx context.Context, wallet string) error {
	if err := pc.rdb.Set(ctx, attemptKey(wallet), "1", pc.attemptTTL).Err(); err != nil {
		return fmt.Errorf("redis: mark attempt %s: %w", wallet, err)
	}
	return nil
}

// ShouldAttempt reports whether the wallet is due for a fresh lookup.
func (pc *ProfileCache) ShouldAttempt(ctx context.Context, wallet string) (bool, error) {
	n, err := pc.rdb.Exists(ctx, attemptKey(wallet)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check attempt %s: %w", wallet, err)
	}
	return n == 0, nil
}
