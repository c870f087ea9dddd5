package domain

// TraderProfile is the cached display metadata for a wallet, keyed by
// proxy wallet address. Profile fields come from the Gamma API or from the
// metadata embedded in data-api trade records; NumTrades and PnLCumulative
// are reserved columns recomputed by the analytics layer, never written by
// ingestion with meaningful values.
type TraderProfile struct {
	ProxyWallet   string  `json:"proxy_wallet"`
	Name          string  `json:"name,omitempty"`
	Pseudonym     string  `json:"pseudonym,omitempty"`
	ProfileImage  string  `json:"profile_image,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	NumTrades     int64   `json:"num_trades"`
	PnLCumulative float64 `json:"pnl_cumulative"`
	LastUpdated   int64   `json:"last_updated"`
}

// HasIdentity reports whether the profile carries any display identity worth
// keeping; the refresher skips wallets that already have one.
func (p TraderProfile) HasIdentity() bool {
	return p.Name != "" || p.Pseudonym != ""
}
