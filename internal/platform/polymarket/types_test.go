package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
)

func TestAPITradeToDomainTrade(t *testing.T) {
	raw := `{
		"transactionHash": "0xabc",
		"conditionId": "0xmarket",
		"asset": "123456",
		"proxyWallet": "0x1111111111111111111111111111111111111111",
		"side": "buy",
		"price": "0.45",
		"size": 200,
		"outcome": "Yes",
		"outcomeIndex": "0",
		"title": "Will it happen?",
		"slug": "will-it-happen",
		"icon": "https://example.com/icon.png",
		"timestamp": 1735689600,
		"name": "alice",
		"pseudonym": "Brave-Falcon",
		"profileImageOptimized": "https://example.com/alice-small.png",
		"profileImage": "https://example.com/alice.png"
	}`

	var apiTrade APITrade
	require.NoError(t, json.Unmarshal([]byte(raw), &apiTrade))

	trade, err := apiTrade.ToDomainTrade("0xfallback")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", trade.TransactionHash)
	assert.Equal(t, "0xmarket", trade.MarketID)
	assert.Equal(t, "123456", trade.TokenID)
	assert.Equal(t, domain.SideBuy, trade.Side)
	assert.Equal(t, 0.45, trade.Price)
	assert.Equal(t, 200.0, trade.Size)
	assert.Equal(t, 90.0, trade.Amount)
	assert.Equal(t, 0, trade.OutcomeIndex)
	assert.Equal(t, "will-it-happen", trade.MarketSlug)
	assert.Equal(t, int64(1735689600), trade.MatchTime)

	profile, ok := apiTrade.ToDomainProfile()
	require.True(t, ok)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, "https://example.com/alice-small.png", profile.ProfileImage)
}

func TestAPITradeFallbackMarket(t *testing.T) {
	apiTrade := APITrade{
		TransactionHash: "0xabc",
		ProxyWallet:     "0x1",
		Side:            "SELL",
		Price:           0.5,
		Size:            10,
	}

	trade, err := apiTrade.ToDomainTrade("0xfallback")
	require.NoError(t, err)
	assert.Equal(t, "0xfallback", trade.MarketID)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.NotZero(t, trade.MatchTime)
}

func TestAPITradeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		trade APITrade
	}{
		{"missing hash", APITrade{ProxyWallet: "0x1", Side: "BUY"}},
		{"missing wallet", APITrade{TransactionHash: "0xabc", Side: "BUY"}},
		{"bad side", APITrade{TransactionHash: "0xabc", ProxyWallet: "0x1", Side: "HOLD"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.trade.ToDomainTrade("0xm")
			assert.ErrorIs(t, err, domain.ErrInvalidTrade)
		})
	}
}

func TestFlexTimeMilliseconds(t *testing.T) {
	var ts flexTime
	require.NoError(t, json.Unmarshal([]byte(`"1735689600000"`), &ts))
	assert.Equal(t, int64(1735689600), int64(ts))

	require.NoError(t, json.Unmarshal([]byte(`1735689600`), &ts))
	assert.Equal(t, int64(1735689600), int64(ts))

	require.NoError(t, json.Unmarshal([]byte(`"2025-01-01T00:00:00Z"`), &ts))
	assert.Equal(t, int64(1735689600), int64(ts))
}

func TestWSTradeEventToDomainTrade(t *testing.T) {
	raw := `{
		"event_type": "last_trade_price",
		"transactionHash": "0xdef",
		"market": "0xmarket",
		"asset_id": "123456",
		"proxyWallet": "0x2",
		"side": "SELL",
		"price": "0.70",
		"size": "5",
		"timestamp": "1735689600123"
	}`

	var event WSTradeEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	require.True(t, event.IsTrade())

	trade, err := event.ToDomainTrade("0xfallback")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", trade.TransactionHash)
	assert.Equal(t, "0xmarket", trade.MarketID)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, 3.5, trade.Amount)
	assert.Equal(t, int64(1735689600), trade.MatchTime)
}

func TestParseEvents(t *testing.T) {
	batch := `[
		{"event_type": "last_trade_price", "transactionHash": "0x1", "proxyWallet": "0xa", "side": "BUY", "price": "0.5", "size": "10"},
		{"event_type": "book", "asset_id": "123"},
		{"event_type": "trade", "transactionHash": "0x2", "proxyWallet": "0xb", "side": "SELL", "price": "0.6", "size": "4"}
	]`

	events := ParseEvents([]byte(batch))
	require.Len(t, events, 2)
	assert.Equal(t, "0x1", events[0].TransactionHash)
	assert.Equal(t, "0x2", events[1].TransactionHash)

	assert.Empty(t, ParseEvents([]byte("PONG")))
	assert.Empty(t, ParseEvents([]byte(`{"event_type":"book"}`)))
	assert.Empty(t, ParseEvents([]byte("not json")))
}
