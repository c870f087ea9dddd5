// Package analytics derives aggregate views from the trade ledger: market
// summaries, whale detection, leaderboards, and per-wallet positions with
// realized PnL. Everything is computed on read; the package never writes.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// epsilon is the share count below which a position counts as closed;
// float accumulation over many partial fills never lands on exactly zero.
const epsilon = 1e-6

// mediumFraction of the whale threshold marks the medium size class.
const mediumFraction = 0.1

// Size classes assigned by Classify.
const (
	SizeWhale  = "whale"
	SizeMedium = "medium"
	SizeSmall  = "small"
)

// ClassifiedTrade is a ledger row annotated for display.
type ClassifiedTrade struct {
	domain.TradeRow
	SizeClass   string `json:"size_class"`
	IsWhale     bool   `json:"is_whale"`
	DisplayTime string `json:"display_time"`
}

// OutcomeCard is the per-outcome buy/sell breakdown shown on the dashboard.
type OutcomeCard struct {
	Outcome      string  `json:"outcome"`
	BuyCount     int64   `json:"buy_count"`
	BuyVolume    float64 `json:"buy_volume"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	SellCount    int64   `json:"sell_count"`
	SellVolume   float64 `json:"sell_volume"`
	AvgSellPrice float64 `json:"avg_sell_price"`
}

// MarketSummary is the full stats payload for a market.
type MarketSummary struct {
	Stats          domain.StatsSummary `json:"stats"`
	WhaleThreshold float64             `json:"whale_threshold"`
	Outcomes       []OutcomeCard       `json:"outcomes"`
}

// RankedTrader is a leaderboard entry annotated with the size class of the
// wallet's largest trade.
type RankedTrader struct {
	domain.LeaderboardEntry
	Rank      int    `json:"rank"`
	SizeClass string `json:"size_class"`
}

// WalletStats is the aggregate view of one wallet's history.
type WalletStats struct {
	TradeCount   int64   `json:"trade_count"`
	TotalVolume  float64 `json:"total_volume"`
	BuyVolume    float64 `json:"buy_volume"`
	SellVolume   float64 `json:"sell_volume"`
	LargestTrade float64 `json:"largest_trade"`
	AvgTradeSize float64 `json:"avg_trade_size"`
	FirstSeen    int64   `json:"first_seen"`
	LastSeen     int64   `json:"last_seen"`
	RealizedPnL  float64 `json:"realized_pnl"`
}

// WalletReport is the full per-wallet analytics payload.
type WalletReport struct {
	Wallet    string            `json:"wallet"`
	Stats     WalletStats       `json:"stats"`
	Positions []domain.Position `json:"positions"`
	Closed    []domain.Position `json:"closed_positions"`
}

// Engine computes analytics over the ledger. The whale threshold is applied
// at read time, so raising or lowering it reclassifies history immediately.
type Engine struct {
	ledger    domain.Ledger
	threshold float64
	logger    *slog.Logger
}

// NewEngine creates an Engine reading from the given ledger.
func NewEngine(ledger domain.Ledger, whaleThreshold float64, logger *slog.Logger) *Engine {
	return &Engine{
		ledger:    ledger,
		threshold: whaleThreshold,
		logger:    logger.With(slog.String("component", "analytics")),
	}
}

// WhaleThreshold returns the configured whale cutoff.
func (e *Engine) WhaleThreshold() float64 {
	return e.threshold
}

// Classify annotates a ledger row with its size class and display time.
func (e *Engine) Classify(row domain.TradeRow) ClassifiedTrade {
	class := SizeSmall
	switch {
	case e.threshold > 0 && row.Amount >= e.threshold:
		class = SizeWhale
	case e.threshold > 0 && row.Amount >= e.threshold*mediumFraction:
		class = SizeMedium
	}

	return ClassifiedTrade{
		TradeRow:    row,
		SizeClass:   class,
		IsWhale:     class == SizeWhale,
		DisplayTime: time.Unix(row.MatchTime, 0).UTC().Format("2006-01-02 15:04:05"),
	}
}

// ClassifyAll annotates a batch of rows.
func (e *Engine) ClassifyAll(rows []domain.TradeRow) []ClassifiedTrade {
	out := make([]ClassifiedTrade, 0, len(rows))
	for _, row := range rows {
		out = append(out, e.Classify(row))
	}
	return out
}

// Summary computes the market's aggregate stats plus the per-outcome
// buy/sell cards.
func (e *Engine) Summary(ctx context.Context, marketID string) (MarketSummary, error) {
	stats, err := e.ledger.AggregateStats(ctx, marketID)
	if err != nil {
		return MarketSummary{}, fmt.Errorf("analytics: summary: %w", err)
	}

	volumes, err := e.ledger.VolumeByOutcome(ctx, marketID)
	if err != nil {
		return MarketSummary{}, fmt.Errorf("analytics: summary: %w", err)
	}

	return MarketSummary{
		Stats:          stats,
		WhaleThreshold: e.threshold,
		Outcomes:       buildOutcomeCards(volumes),
	}, nil
}

// WhaleTrades returns trades at or above the threshold, newest first.
func (e *Engine) WhaleTrades(ctx context.Context, marketID string, limit int) ([]ClassifiedTrade, error) {
	rows, err := e.ledger.QueryTrades(ctx, domain.TradeFilter{
		MarketID:  marketID,
		MinAmount: e.threshold,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: whale trades: %w", err)
	}
	return e.ClassifyAll(rows), nil
}

// TopTraders returns the volume leaderboard with ranks assigned.
func (e *Engine) TopTraders(ctx context.Context, marketID string, limit int) ([]RankedTrader, error) {
	entries, err := e.ledger.TopTraders(ctx, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics: top traders: %w", err)
	}

	out := make([]RankedTrader, 0, len(entries))
	for i, entry := range entries {
		class := SizeSmall
		switch {
		case e.threshold > 0 && entry.LargestTrade >= e.threshold:
			class = SizeWhale
		case e.threshold > 0 && entry.LargestTrade >= e.threshold*mediumFraction:
			class = SizeMedium
		}
		out = append(out, RankedTrader{
			LeaderboardEntry: entry,
			Rank:             i + 1,
			SizeClass:        class,
		})
	}
	return out, nil
}

// WalletReport replays the wallet's trades oldest-first and derives its
// positions, realized PnL, and aggregate stats. Returns domain.ErrNotFound
// for a wallet with no trades.
func (e *Engine) WalletReport(ctx context.Context, wallet string) (WalletReport, error) {
	trades, err := e.ledger.ListWalletTrades(ctx, wallet)
	if err != nil {
		return WalletReport{}, fmt.Errorf("analytics: wallet report: %w", err)
	}
	if len(trades) == 0 {
		return WalletReport{}, fmt.Errorf("analytics: wallet %s: %w", wallet, domain.ErrNotFound)
	}

	report := WalletReport{Wallet: wallet}
	positions := make(map[string]*domain.Position)
	order := make([]string, 0)

	for _, t := range trades {
		report.Stats.TradeCount++
		report.Stats.TotalVolume += t.Amount
		if t.Amount > report.Stats.LargestTrade {
			report.Stats.LargestTrade = t.Amount
		}
		if report.Stats.FirstSeen == 0 || t.MatchTime < report.Stats.FirstSeen {
			report.Stats.FirstSeen = t.MatchTime
		}
		if t.MatchTime > report.Stats.LastSeen {
			report.Stats.LastSeen = t.MatchTime
		}

		key := t.MarketID + "|" + t.TokenID
		pos, ok := positions[key]
		if !ok {
			pos = &domain.Position{
				MarketID:    t.MarketID,
				TokenID:     t.TokenID,
				Outcome:     t.Outcome,
				MarketTitle: t.MarketTitle,
			}
			positions[key] = pos
			order = append(order, key)
		}

		switch t.Side {
		case domain.SideBuy:
			report.Stats.BuyVolume += t.Amount
			// Volume-weighted average entry over the running holding.
			total := pos.NetShares + t.Size
			if total > 0 {
				pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.NetShares + t.Price*t.Size) / total
			}
			pos.NetShares = total
			pos.TotalBought += t.Amount

		case domain.SideSell:
			report.Stats.SellVolume += t.Amount
			// Realize PnL only on shares actually held; the remainder of an
			// orphaned sell has no recorded entry price.
			matched := t.Size
			if matched > pos.NetShares {
				e.logger.Debug("sell exceeds held shares",
					slog.String("wallet", wallet),
					slog.String("token", t.TokenID),
					slog.Float64("size", t.Size),
					slog.Float64("held", pos.NetShares),
				)
				matched = pos.NetShares
			}
			pos.RealizedPnL += (t.Price - pos.AvgEntryPrice) * matched
			pos.NetShares -= matched
			pos.TotalSold += t.Amount
		}
	}

	for _, key := range order {
		pos := positions[key]
		report.Stats.RealizedPnL += pos.RealizedPnL
		if pos.NetShares > epsilon {
			report.Positions = append(report.Positions, *pos)
		} else {
			pos.NetShares = 0
			report.Closed = append(report.Closed, *pos)
		}
	}

	sort.Slice(report.Positions, func(i, j int) bool {
		return report.Positions[i].TokenID < report.Positions[j].TokenID
	})
	sort.Slice(report.Closed, func(i, j int) bool {
		return report.Closed[i].TokenID < report.Closed[j].TokenID
	})

	if report.Stats.TradeCount > 0 {
		report.Stats.AvgTradeSize = report.Stats.TotalVolume / float64(report.Stats.TradeCount)
	}

	return report, nil
}

// buildOutcomeCards folds the outcome x side rows into one card per outcome.
func buildOutcomeCards(volumes []domain.OutcomeVolume) []OutcomeCard {
	cards := make(map[string]*OutcomeCard)
	order := make([]string, 0)

	for _, v := range volumes {
		card, ok := cards[v.Outcome]
		if !ok {
			card = &OutcomeCard{Outcome: v.Outcome}
			cards[v.Outcome] = card
			order = append(order, v.Outcome)
		}
		switch v.Side {
		case domain.SideBuy:
			card.BuyCount = v.TradeCount
			card.BuyVolume = v.Volume
			card.AvgBuyPrice = v.AvgPrice
		case domain.SideSell:
			card.SellCount = v.TradeCount
			card.SellVolume = v.Volume
			card.AvgSellPrice = v.AvgPrice
		}
	}

	sort.Strings(order)
	out := make([]OutcomeCard, 0, len(order))
	for _, outcome := range order {
		out = append(out, *cards[outcome])
	}
	return out
}
