// Package domain defines the core types shared by the ingestion pipeline,
// the ledger store, and the analytics layer.
package domain

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two canonical values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is one matched trade on a prediction market. Trades are immutable
// once stored; TransactionHash is the global dedup key.
type Trade struct {
	ID              int64   `json:"id,omitempty"`
	TransactionHash string  `json:"transaction_hash"`
	MarketID        string  `json:"market_id"`
	TokenID         string  `json:"token_id"`
	ProxyWallet     string  `json:"proxy_wallet"`
	Side            Side    `json:"side"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	Amount          float64 `json:"amount"`
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcome_index"`
	MarketTitle     string  `json:"market_title"`
	MarketSlug      string  `json:"market_slug"`
	MarketIcon      string  `json:"market_icon"`
	MatchTime       int64   `json:"match_time"`
}

// TradeRow is a ledger row joined with the trader's cached profile fields,
// as returned by QueryTrades.
type TradeRow struct {
	Trade
	TraderName      string `json:"trader_name,omitempty"`
	TraderPseudonym string `json:"trader_pseudonym,omitempty"`
	TraderImage     string `json:"trader_image,omitempty"`
}

// TradeFilter narrows ledger queries. Zero values mean "no constraint";
// Limit <= 0 means unbounded.
type TradeFilter struct {
	MarketID  string
	Wallet    string
	MinAmount float64
	Limit     int
}
