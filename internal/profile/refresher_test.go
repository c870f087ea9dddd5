package profile

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
)

type stubLedger struct {
	domain.Ledger
	wallets []string
}

func (s *stubLedger) DistinctWallets(context.Context) ([]string, error) {
	return s.wallets, nil
}

type stubProfiles struct {
	stored map[string]domain.TraderProfile
}

func (s *stubProfiles) UpsertProfile(_ context.Context, p domain.TraderProfile) error {
	s.stored[p.ProxyWallet] = p
	return nil
}

func (s *stubProfiles) GetProfile(_ context.Context, wallet string) (domain.TraderProfile, error) {
	p, ok := s.stored[wallet]
	if !ok {
		return domain.TraderProfile{}, domain.ErrNotFound
	}
	return p, nil
}

type stubFetcher struct {
	profiles map[string]domain.TraderProfile
	calls    []string
}

func (s *stubFetcher) GetProfile(_ context.Context, wallet string) (domain.TraderProfile, error) {
	s.calls = append(s.calls, wallet)
	p, ok := s.profiles[wallet]
	if !ok {
		return domain.TraderProfile{}, domain.ErrNotFound
	}
	return p, nil
}

type stubGate struct {
	blocked map[string]bool
	marked  []string
}

func (s *stubGate) ShouldAttempt(_ context.Context, wallet string) (bool, error) {
	return !s.blocked[wallet], nil
}

func (s *stubGate) MarkAttempt(_ context.Context, wallet string) error {
	s.marked = append(s.marked, wallet)
	return nil
}

func newRefresher(ledger domain.Ledger, profiles domain.ProfileStore, fetcher Fetcher, gate AttemptGate) *Refresher {
	return NewRefresher(ledger, profiles, fetcher, gate, time.Minute, slog.New(slog.DiscardHandler))
}

func TestRefreshFillsMissingIdentities(t *testing.T) {
	ledger := &stubLedger{wallets: []string{"0xa", "0xb", "0xc"}}
	profiles := &stubProfiles{stored: map[string]domain.TraderProfile{
		"0xa": {ProxyWallet: "0xa", Name: "alice"}, // already known
	}}
	fetcher := &stubFetcher{profiles: map[string]domain.TraderProfile{
		"0xb": {ProxyWallet: "0xb", Pseudonym: "Brave-Falcon"},
		// 0xc has no upstream profile
	}}
	gate := &stubGate{blocked: map[string]bool{}}

	r := newRefresher(ledger, profiles, fetcher, gate)
	r.refresh(context.Background())

	// Only the unknown wallets were fetched.
	assert.Equal(t, []string{"0xb", "0xc"}, fetcher.calls)
	assert.Equal(t, []string{"0xb", "0xc"}, gate.marked)

	got, err := profiles.GetProfile(context.Background(), "0xb")
	require.NoError(t, err)
	assert.Equal(t, "Brave-Falcon", got.Pseudonym)
	_, err = profiles.GetProfile(context.Background(), "0xc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(1), stats.Refreshed)
	assert.NotZero(t, stats.LastRunUnix)
}

func TestRefreshHonorsAttemptGate(t *testing.T) {
	ledger := &stubLedger{wallets: []string{"0xa"}}
	profiles := &stubProfiles{stored: map[string]domain.TraderProfile{}}
	fetcher := &stubFetcher{}
	gate := &stubGate{blocked: map[string]bool{"0xa": true}}

	r := newRefresher(ledger, profiles, fetcher, gate)
	r.refresh(context.Background())

	assert.Empty(t, fetcher.calls)
	assert.Empty(t, gate.marked)
}

func TestRefreshWithoutGate(t *testing.T) {
	ledger := &stubLedger{wallets: []string{"0xa"}}
	profiles := &stubProfiles{stored: map[string]domain.TraderProfile{}}
	fetcher := &stubFetcher{profiles: map[string]domain.TraderProfile{
		"0xa": {ProxyWallet: "0xa", Name: "alice"},
	}}

	r := newRefresher(ledger, profiles, fetcher, nil)
	r.refresh(context.Background())

	got, err := profiles.GetProfile(context.Background(), "0xa")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
}
