package polymarket

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string, since the
// Data API and the stream disagree on how they encode price and size.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat(n)
	return nil
}

// flexInt unmarshals from a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var fl float64
	if err := json.Unmarshal(data, &fl); err == nil {
		*f = flexInt(int64(fl))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("parse integer %q: %w", s, err)
		}
		n = int64(fl)
	}
	*f = flexInt(n)
	return nil
}

// flexTime unmarshals a timestamp that may arrive as Unix seconds, Unix
// milliseconds, a numeric string, or an ISO-8601 string, and normalizes it
// to Unix seconds.
type flexTime int64

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = flexTime(normalizeUnix(int64(n)))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = 0
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*t = flexTime(normalizeUnix(int64(n)))
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = flexTime(parsed.Unix())
	return nil
}

// normalizeUnix converts millisecond timestamps to seconds. Anything past
// the year 33658 in seconds is assumed to be milliseconds.
func normalizeUnix(n int64) int64 {
	if n > 1_000_000_000_000 {
		return n / 1000
	}
	return n
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APITrade represents one trade record as returned by the Data API
// /trades endpoint. Trader profile metadata rides along on each record.
type APITrade struct {
	TransactionHash string    `json:"transactionHash"`
	ConditionID     string    `json:"conditionId"`
	Asset           string    `json:"asset"`
	ProxyWallet     string    `json:"proxyWallet"`
	Side            string    `json:"side"`
	Price           flexFloat `json:"price"`
	Size            flexFloat `json:"size"`
	Outcome         string    `json:"outcome"`
	OutcomeIndex    flexInt   `json:"outcomeIndex"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Icon            string    `json:"icon"`
	Timestamp       flexTime  `json:"timestamp"`

	Name              string `json:"name"`
	Pseudonym         string `json:"pseudonym"`
	Bio               string `json:"bio"`
	ProfileImage      string `json:"profileImage"`
	ProfileImageOptim string `json:"profileImageOptimized"`
}

// ToDomainTrade converts an APITrade to a canonical domain.Trade.
// defaultMarket fills market_id when the record omits its condition ID.
// Records missing a transaction hash, wallet, or a recognizable side are
// rejected as malformed.
func (t *APITrade) ToDomainTrade(defaultMarket string) (domain.Trade, error) {
	hash := t.TransactionHash
	if hash == "" {
		return domain.Trade{}, fmt.Errorf("missing transaction hash: %w", domain.ErrInvalidTrade)
	}
	if t.ProxyWallet == "" {
		return domain.Trade{}, fmt.Errorf("missing wallet: %w", domain.ErrInvalidTrade)
	}

	side := domain.Side(strings.ToUpper(t.Side))
	if !side.Valid() {
		return domain.Trade{}, fmt.Errorf("side %q: %w", t.Side, domain.ErrInvalidTrade)
	}

	marketID := t.ConditionID
	if marketID == "" {
		marketID = defaultMarket
	}

	matchTime := int64(t.Timestamp)
	if matchTime == 0 {
		matchTime = time.Now().Unix()
	}

	price := float64(t.Price)
	size := float64(t.Size)

	return domain.Trade{
		TransactionHash: hash,
		MarketID:        marketID,
		TokenID:         t.Asset,
		ProxyWallet:     t.ProxyWallet,
		Side:            side,
		Price:           price,
		Size:            size,
		Amount:          math.Round(price*size*1e6) / 1e6,
		Outcome:         t.Outcome,
		OutcomeIndex:    int(t.OutcomeIndex),
		MarketTitle:     t.Title,
		MarketSlug:      t.Slug,
		MarketIcon:      t.Icon,
		MatchTime:       matchTime,
	}, nil
}

// ToDomainProfile extracts the trader profile metadata embedded in a trade
// record. Returns false when the record carries no wallet.
func (t *APITrade) ToDomainProfile() (domain.TraderProfile, bool) {
	if t.ProxyWallet == "" {
		return domain.TraderProfile{}, false
	}
	image := t.ProfileImageOptim
	if image == "" {
		image = t.ProfileImage
	}
	return domain.TraderProfile{
		ProxyWallet:  t.ProxyWallet,
		Name:         t.Name,
		Pseudonym:    t.Pseudonym,
		ProfileImage: image,
		Bio:          t.Bio,
		LastUpdated:  time.Now().Unix(),
	}, true
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIProfile represents a trader profile as returned by the Gamma API
// /profiles endpoint.
type APIProfile struct {
	ProxyWallet       string `json:"proxyWallet"`
	Name              string `json:"name"`
	Pseudonym         string `json:"pseudonym"`
	Bio               string `json:"bio"`
	ProfileImage      string `json:"profileImage"`
	ProfileImageOptim string `json:"profileImageOptimized"`
}

// ToDomainProfile converts an APIProfile to a domain.TraderProfile keyed
// by the given wallet, which wins over the payload's own wallet field.
func (p *APIProfile) ToDomainProfile(wallet string) domain.TraderProfile {
	if wallet == "" {
		wallet = p.ProxyWallet
	}
	image := p.ProfileImageOptim
	if image == "" {
		image = p.ProfileImage
	}
	return domain.TraderProfile{
		ProxyWallet:  wallet,
		Name:         p.Name,
		Pseudonym:    p.Pseudonym,
		ProfileImage: image,
		Bio:          p.Bio,
		LastUpdated:  time.Now().Unix(),
	}
}

// --------------------------------------------------------------------------
// WebSocket messages
// --------------------------------------------------------------------------

// WSCommand is a subscription command sent to the market channel.
type WSCommand struct {
	Type     string   `json:"type"`
	Channel  string   `json:"channel"`
	AssetIDs []string `json:"assets_ids"`
}

// WSTradeEvent is a trade frame pushed on the market channel. The feed
// labels trades as either "trade" or "last_trade_price" events; both carry
// the same fields.
type WSTradeEvent struct {
	EventType       string    `json:"event_type"`
	TransactionHash string    `json:"transactionHash"`
	Market          string    `json:"market"`
	AssetID         string    `json:"asset_id"`
	ProxyWallet     string    `json:"proxyWallet"`
	Side            string    `json:"side"`
	Price           flexFloat `json:"price"`
	Size            flexFloat `json:"size"`
	Outcome         string    `json:"outcome"`
	OutcomeIndex    flexInt   `json:"outcomeIndex"`
	Timestamp       flexTime  `json:"timestamp"`
}

// IsTrade reports whether the frame is one of the trade-bearing event types.
func (e *WSTradeEvent) IsTrade() bool {
	return e.EventType == "trade" || e.EventType == "last_trade_price"
}

// ToDomainTrade converts a stream frame to a canonical domain.Trade, the
// same shape ToDomainTrade produces for REST records so both ingestion
// paths feed the ledger identically.
func (e *WSTradeEvent) ToDomainTrade(defaultMarket string) (domain.Trade, error) {
	if e.TransactionHash == "" {
		return domain.Trade{}, fmt.Errorf("missing transaction hash: %w", domain.ErrInvalidTrade)
	}
	if e.ProxyWallet == "" {
		return domain.Trade{}, fmt.Errorf("missing wallet: %w", domain.ErrInvalidTrade)
	}

	side := domain.Side(strings.ToUpper(e.Side))
	if !side.Valid() {
		return domain.Trade{}, fmt.Errorf("side %q: %w", e.Side, domain.ErrInvalidTrade)
	}

	marketID := e.Market
	if marketID == "" {
		marketID = defaultMarket
	}

	matchTime := int64(e.Timestamp)
	if matchTime == 0 {
		matchTime = time.Now().Unix()
	}

	price := float64(e.Price)
	size := float64(e.Size)

	return domain.Trade{
		TransactionHash: e.TransactionHash,
		MarketID:        marketID,
		TokenID:         e.AssetID,
		ProxyWallet:     e.ProxyWallet,
		Side:            side,
		Price:           price,
		Size:            size,
		Amount:          math.Round(price*size*1e6) / 1e6,
		Outcome:         e.Outcome,
		OutcomeIndex:    int(e.OutcomeIndex),
		MatchTime:       matchTime,
	}, nil
}
