package handler

import (
	"log/slog"
	"net/http"

	"github.com/polywatch/engine/internal/analytics"
	"github.com/polywatch/engine/internal/domain"
)

// TradeHandler serves the trade feed.
type TradeHandler struct {
	ledger        domain.Ledger
	engine        *analytics.Engine
	defaultMarket string
	logger        *slog.Logger
}

// NewTradeHandler creates a TradeHandler. defaultMarket applies when the
// request names no market.
func NewTradeHandler(ledger domain.Ledger, engine *analytics.Engine, defaultMarket string, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		ledger:        ledger,
		engine:        engine,
		defaultMarket: defaultMarket,
		logger:        logHandler(logger, "trades"),
	}
}

// ListTrades handles GET /api/trades. Query parameters: market_id, wallet,
// min_amount, limit (default 100, max 1000).
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter := domain.TradeFilter{
		MarketID:  r.URL.Query().Get("market_id"),
		Wallet:    r.URL.Query().Get("wallet"),
		MinAmount: parseFloat(r, "min_amount", 0),
		Limit:     parseLimit(r, 100, 1000),
	}
	if filter.MarketID == "" {
		filter.MarketID = h.defaultMarket
	}

	rows, err := h.ledger.QueryTrades(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "trade query failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}

	classified := h.engine.ClassifyAll(rows)
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": classified,
		"count":  len(classified),
	})
}
