package analytics

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
)

// fakeLedger serves canned data for engine tests.
type fakeLedger struct {
	walletTrades map[string][]domain.Trade
	rows         []domain.TradeRow
	stats        domain.StatsSummary
	volumes      []domain.OutcomeVolume
	leaders      []domain.LeaderboardEntry

	lastFilter domain.TradeFilter
}

func (f *fakeLedger) InsertTrade(context.Context, domain.Trade) (bool, error) {
	return false, nil
}

func (f *fakeLedger) QueryTrades(_ context.Context, filter domain.TradeFilter) ([]domain.TradeRow, error) {
	f.lastFilter = filter
	var out []domain.TradeRow
	for _, r := range f.rows {
		if filter.MinAmount > 0 && r.Amount < filter.MinAmount {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeLedger) ListWalletTrades(_ context.Context, wallet string) ([]domain.Trade, error) {
	return f.walletTrades[wallet], nil
}

func (f *fakeLedger) AggregateStats(context.Context, string) (domain.StatsSummary, error) {
	return f.stats, nil
}

func (f *fakeLedger) VolumeByOutcome(context.Context, string) ([]domain.OutcomeVolume, error) {
	return f.volumes, nil
}

func (f *fakeLedger) TopTraders(context.Context, string, int) ([]domain.LeaderboardEntry, error) {
	return f.leaders, nil
}

func (f *fakeLedger) DistinctWallets(context.Context) ([]string, error) {
	return nil, nil
}

func newEngine(ledger domain.Ledger, threshold float64) *Engine {
	return NewEngine(ledger, threshold, slog.New(slog.DiscardHandler))
}

func buy(token string, price, size float64, at int64) domain.Trade {
	return domain.Trade{
		MarketID: "0xm", TokenID: token, Side: domain.SideBuy,
		Price: price, Size: size, Amount: price * size, MatchTime: at,
	}
}

func sell(token string, price, size float64, at int64) domain.Trade {
	return domain.Trade{
		MarketID: "0xm", TokenID: token, Side: domain.SideSell,
		Price: price, Size: size, Amount: price * size, MatchTime: at,
	}
}

func TestWalletReportAverageEntry(t *testing.T) {
	ledger := &fakeLedger{walletTrades: map[string][]domain.Trade{
		"0xa": {
			buy("tok", 0.40, 10, 100),
			buy("tok", 0.60, 10, 200),
			sell("tok", 0.70, 5, 300),
		},
	}}

	report, err := newEngine(ledger, 1000).WalletReport(context.Background(), "0xa")
	require.NoError(t, err)

	require.Len(t, report.Positions, 1)
	pos := report.Positions[0]

	// Two buys average to 0.50 over 20 shares; the sell of 5 at 0.70
	// realizes (0.70-0.50)*5 = 1.00 and leaves the average untouched.
	assert.InEpsilon(t, 15.0, pos.NetShares, 1e-9)
	assert.InEpsilon(t, 0.50, pos.AvgEntryPrice, 1e-9)
	assert.InEpsilon(t, 1.00, pos.RealizedPnL, 1e-9)
	assert.InEpsilon(t, 1.00, report.Stats.RealizedPnL, 1e-9)

	assert.Equal(t, int64(3), report.Stats.TradeCount)
	assert.InEpsilon(t, 4+6+3.5, report.Stats.TotalVolume, 1e-9)
	assert.InEpsilon(t, 10.0, report.Stats.BuyVolume, 1e-9)
	assert.InEpsilon(t, 3.5, report.Stats.SellVolume, 1e-9)
	assert.Equal(t, int64(100), report.Stats.FirstSeen)
	assert.Equal(t, int64(300), report.Stats.LastSeen)
}

func TestWalletReportClosedPosition(t *testing.T) {
	ledger := &fakeLedger{walletTrades: map[string][]domain.Trade{
		"0xa": {
			buy("tok", 0.50, 10, 100),
			sell("tok", 0.80, 10, 200),
		},
	}}

	report, err := newEngine(ledger, 1000).WalletReport(context.Background(), "0xa")
	require.NoError(t, err)

	assert.Empty(t, report.Positions)
	require.Len(t, report.Closed, 1)
	assert.Zero(t, report.Closed[0].NetShares)
	assert.InEpsilon(t, 3.0, report.Closed[0].RealizedPnL, 1e-9)
}

func TestWalletReportOrphanedSellClamped(t *testing.T) {
	ledger := &fakeLedger{walletTrades: map[string][]domain.Trade{
		"0xa": {
			buy("tok", 0.50, 5, 100),
			sell("tok", 0.60, 8, 200), // 3 shares were bought elsewhere
		},
	}}

	report, err := newEngine(ledger, 1000).WalletReport(context.Background(), "0xa")
	require.NoError(t, err)

	require.Len(t, report.Closed, 1)
	// Only the 5 held shares realize PnL; the position never goes negative.
	assert.InEpsilon(t, 0.5, report.Closed[0].RealizedPnL, 1e-9)
	assert.Zero(t, report.Closed[0].NetShares)
}

func TestWalletReportSeparatesTokens(t *testing.T) {
	ledger := &fakeLedger{walletTrades: map[string][]domain.Trade{
		"0xa": {
			buy("yes", 0.60, 10, 100),
			buy("no", 0.40, 20, 200),
			sell("yes", 0.70, 10, 300),
		},
	}}

	report, err := newEngine(ledger, 1000).WalletReport(context.Background(), "0xa")
	require.NoError(t, err)

	require.Len(t, report.Positions, 1)
	assert.Equal(t, "no", report.Positions[0].TokenID)
	require.Len(t, report.Closed, 1)
	assert.Equal(t, "yes", report.Closed[0].TokenID)
	assert.InEpsilon(t, 1.0, report.Stats.RealizedPnL, 1e-9)
}

func TestWalletReportUnseenWallet(t *testing.T) {
	ledger := &fakeLedger{walletTrades: map[string][]domain.Trade{}}

	_, err := newEngine(ledger, 1000).WalletReport(context.Background(), "0xnobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassify(t *testing.T) {
	e := newEngine(&fakeLedger{}, 1000)

	tests := []struct {
		amount float64
		class  string
		whale  bool
	}{
		{2500, SizeWhale, true},
		{1000, SizeWhale, true},
		{999.99, SizeMedium, false},
		{100, SizeMedium, false},
		{99.99, SizeSmall, false},
	}

	for _, tc := range tests {
		got := e.Classify(domain.TradeRow{Trade: domain.Trade{Amount: tc.amount, MatchTime: 1735689600}})
		assert.Equal(t, tc.class, got.SizeClass, "amount %v", tc.amount)
		assert.Equal(t, tc.whale, got.IsWhale, "amount %v", tc.amount)
		assert.Equal(t, "2025-01-01 00:00:00", got.DisplayTime)
	}
}

func TestWhaleTradesThresholdIsRetroactive(t *testing.T) {
	rows := []domain.TradeRow{
		{Trade: domain.Trade{TransactionHash: "0x1", Amount: 5000}},
		{Trade: domain.Trade{TransactionHash: "0x2", Amount: 500}},
	}

	// At threshold 1000 only the first row qualifies.
	ledger := &fakeLedger{rows: rows}
	whales, err := newEngine(ledger, 1000).WhaleTrades(context.Background(), "0xm", 50)
	require.NoError(t, err)
	require.Len(t, whales, 1)
	assert.Equal(t, "0x1", whales[0].TransactionHash)
	assert.InEpsilon(t, 1000.0, ledger.lastFilter.MinAmount, 1e-9)

	// Lowering the threshold reclassifies stored history on the next read.
	whales, err = newEngine(ledger, 400).WhaleTrades(context.Background(), "0xm", 50)
	require.NoError(t, err)
	assert.Len(t, whales, 2)
}

func TestTopTradersRanking(t *testing.T) {
	ledger := &fakeLedger{leaders: []domain.LeaderboardEntry{
		{ProxyWallet: "0xa", TotalVolume: 9000, LargestTrade: 2000},
		{ProxyWallet: "0xb", TotalVolume: 400, LargestTrade: 150},
		{ProxyWallet: "0xc", TotalVolume: 90, LargestTrade: 90},
	}}

	ranked, err := newEngine(ledger, 1000).TopTraders(context.Background(), "0xm", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, SizeWhale, ranked[0].SizeClass)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, SizeMedium, ranked[1].SizeClass)
	assert.Equal(t, SizeSmall, ranked[2].SizeClass)
}

func TestSummaryOutcomeCards(t *testing.T) {
	ledger := &fakeLedger{
		stats: domain.StatsSummary{TotalTrades: 4, TotalVolume: 100},
		volumes: []domain.OutcomeVolume{
			{Outcome: "Yes", Side: domain.SideBuy, TradeCount: 2, Volume: 60, AvgPrice: 0.55},
			{Outcome: "Yes", Side: domain.SideSell, TradeCount: 1, Volume: 30, AvgPrice: 0.60},
			{Outcome: "No", Side: domain.SideBuy, TradeCount: 1, Volume: 10, AvgPrice: 0.40},
		},
	}

	summary, err := newEngine(ledger, 1000).Summary(context.Background(), "0xm")
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Stats.TotalTrades)
	assert.InEpsilon(t, 1000.0, summary.WhaleThreshold, 1e-9)

	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, "No", summary.Outcomes[0].Outcome)
	yes := summary.Outcomes[1]
	assert.Equal(t, int64(2), yes.BuyCount)
	assert.InEpsilon(t, 60.0, yes.BuyVolume, 1e-9)
	assert.InEpsilon(t, 30.0, yes.SellVolume, 1e-9)
	assert.InEpsilon(t, 0.60, yes.AvgSellPrice, 1e-9)
}
