package ingest

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/platform/polymarket"
)

// memLedger is an in-memory domain.Ledger covering what poller tests need.
type memLedger struct {
	mu     sync.Mutex
	trades map[string]domain.Trade
}

func newMemLedger() *memLedger {
	return &memLedger{trades: make(map[string]domain.Trade)}
}

func (m *memLedger) InsertTrade(_ context.Context, t domain.Trade) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[t.TransactionHash]; ok {
		return false, nil
	}
	m.trades[t.TransactionHash] = t
	return true, nil
}

func (m *memLedger) QueryTrades(context.Context, domain.TradeFilter) ([]domain.TradeRow, error) {
	return nil, nil
}

func (m *memLedger) ListWalletTrades(context.Context, string) ([]domain.Trade, error) {
	return nil, nil
}

func (m *memLedger) AggregateStats(context.Context, string) (domain.StatsSummary, error) {
	return domain.StatsSummary{}, nil
}

func (m *memLedger) VolumeByOutcome(context.Context, string) ([]domain.OutcomeVolume, error) {
	return nil, nil
}

func (m *memLedger) TopTraders(context.Context, string, int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

func (m *memLedger) DistinctWallets(context.Context) ([]string, error) {
	return nil, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades)
}

// memProfiles is an in-memory domain.ProfileStore.
type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.TraderProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: make(map[string]domain.TraderProfile)}
}

func (m *memProfiles) UpsertProfile(_ context.Context, p domain.TraderProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ProxyWallet] = p
	return nil
}

func (m *memProfiles) GetProfile(_ context.Context, wallet string) (domain.TraderProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[wallet]
	if !ok {
		return domain.TraderProfile{}, domain.ErrNotFound
	}
	return p, nil
}

type stubFetcher struct {
	trades []polymarket.APITrade
	err    error
}

func (s *stubFetcher) GetTrades(context.Context, string, int) ([]polymarket.APITrade, error) {
	return s.trades, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPollerStoresNewTrades(t *testing.T) {
	ledger := newMemLedger()
	profiles := newMemProfiles()
	fetcher := &stubFetcher{
		trades: []polymarket.APITrade{
			{TransactionHash: "0x1", ProxyWallet: "0xa", Side: "BUY", Price: 0.5, Size: 10, Name: "alice"},
			{TransactionHash: "0x2", ProxyWallet: "0xb", Side: "SELL", Price: 0.6, Size: 4},
			{ProxyWallet: "0xc", Side: "BUY"}, // malformed: no hash
		},
	}

	p := NewPoller(PollerConfig{ConditionID: "0xm", PageLimit: 100}, fetcher, ledger, profiles, nil, testLogger())
	p.poll(context.Background())

	assert.Equal(t, 2, ledger.count())

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.PollCount)
	assert.Equal(t, int64(2), stats.NewTrades)
	assert.NotZero(t, stats.LastPollUnix)

	// Profile metadata rode along on the first record only.
	profile, err := profiles.GetProfile(context.Background(), "0xa")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	_, err = profiles.GetProfile(context.Background(), "0xb")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPollerDeduplicatesAcrossPolls(t *testing.T) {
	ledger := newMemLedger()
	fetcher := &stubFetcher{
		trades: []polymarket.APITrade{
			{TransactionHash: "0x1", ProxyWallet: "0xa", Side: "BUY", Price: 0.5, Size: 10},
		},
	}

	p := NewPoller(PollerConfig{ConditionID: "0xm"}, fetcher, ledger, newMemProfiles(), nil, testLogger())
	p.poll(context.Background())
	p.poll(context.Background())

	assert.Equal(t, 1, ledger.count())
	assert.Equal(t, int64(1), p.Stats().NewTrades)
	assert.Equal(t, int64(2), p.Stats().PollCount)
}

func TestPollerFetchFailureIsRetriedNextTick(t *testing.T) {
	ledger := newMemLedger()
	fetcher := &stubFetcher{err: assert.AnError}

	p := NewPoller(PollerConfig{ConditionID: "0xm"}, fetcher, ledger, newMemProfiles(), nil, testLogger())
	p.poll(context.Background())

	// A failed fetch does not count as a completed poll.
	assert.Equal(t, 0, ledger.count())
	assert.Equal(t, int64(0), p.Stats().PollCount)
}
