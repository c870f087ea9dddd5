package domain

// StatsSummary is the aggregate view of a market's ledger, computed from the
// stored rows on every call so it is always consistent with the ledger.
type StatsSummary struct {
	TotalTrades   int64   `json:"total_trades"`
	TotalVolume   float64 `json:"total_volume"`
	AvgTradeSize  float64 `json:"avg_trade_size"`
	LargestTrade  float64 `json:"largest_trade"`
	UniqueTraders int64   `json:"unique_traders"`
}

// OutcomeVolume is one row of the outcome x side volume breakdown.
type OutcomeVolume struct {
	Outcome    string  `json:"outcome"`
	Side       Side    `json:"side"`
	TradeCount int64   `json:"trade_count"`
	Volume     float64 `json:"volume"`
	AvgPrice   float64 `json:"avg_price"`
}

// LeaderboardEntry is one wallet's row in the top-traders leaderboard.
type LeaderboardEntry struct {
	ProxyWallet   string  `json:"proxy_wallet"`
	Name          string  `json:"name,omitempty"`
	Pseudonym     string  `json:"pseudonym,omitempty"`
	ProfileImage  string  `json:"profile_image,omitempty"`
	TradeCount    int64   `json:"trade_count"`
	TotalVolume   float64 `json:"total_volume"`
	BuyVolume     float64 `json:"buy_volume"`
	SellVolume    float64 `json:"sell_volume"`
	LargestTrade  float64 `json:"largest_trade"`
	LastTradeTime int64   `json:"last_trade_time"`
}

// Position is a wallet's running holding of one outcome token, derived by
// replaying the wallet's trades oldest-first. RealizedPnL accumulates
// (sell price - avg entry) on every share-reducing trade; AvgEntryPrice
// changes only on share-increasing trades.
type Position struct {
	MarketID      string  `json:"market_id"`
	TokenID       string  `json:"token_id"`
	Outcome       string  `json:"outcome"`
	MarketTitle   string  `json:"market_title,omitempty"`
	NetShares     float64 `json:"net_shares"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	TotalBought   float64 `json:"total_bought"`
	TotalSold     float64 `json:"total_sold"`
	RealizedPnL   float64 `json:"realized_pnl"`
}
