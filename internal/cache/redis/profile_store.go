package redis

import (
	"context"
	"log/slog"

	"github.com/polywatch/engine/internal/domain"
)

// CachedProfileStore is a read-through wrapper around a ProfileStore. Reads
// are served from the cache when possible; writes go to the store first and
// then refresh the cache. Cache failures degrade to the backing store and
// are logged, never returned.
type CachedProfileStore struct {
	store  domain.ProfileStore
	cache  *ProfileCache
	logger *slog.Logger
}

// NewCachedProfileStore wraps store with the given cache.
func NewCachedProfileStore(store domain.ProfileStore, cache *ProfileCache, logger *slog.Logger) *CachedProfileStore {
	return &CachedProfileStore{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "profile-cache")),
	}
}

// UpsertProfile writes to the backing store and then refreshes the cache.
func (s *CachedProfileStore) UpsertProfile(ctx context.Context, p domain.TraderProfile) error {
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "cache refresh failed",
			slog.String("wallet", p.ProxyWallet),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// GetProfile serves from the cache when possible, falling back to the
// backing store and filling the cache on a hit there.
func (s *CachedProfileStore) GetProfile(ctx context.Context, wallet string) (domain.TraderProfile, error) {
	p, err := s.cache.Get(ctx, wallet)
	if err == nil {
		return p, nil
	}

	p, err = s.store.GetProfile(ctx, wallet)
	if err != nil {
		return domain.TraderProfile{}, err
	}

	if cacheErr := s.cache.Set(ctx, p); cacheErr != nil {
		s.logger.WarnContext(ctx, "cache fill failed",
			slog.String("wallet", wallet),
			slog.String("error", cacheErr.Error()),
		)
	}
	return p, nil
}
