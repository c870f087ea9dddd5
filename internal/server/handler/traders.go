package handler

import (
	"log/slog"
	"net/http"

	"github.com/polywatch/engine/internal/analytics"
)

// TraderHandler serves the leaderboard and whale feed.
type TraderHandler struct {
	engine        *analytics.Engine
	defaultMarket string
	logger        *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(engine *analytics.Engine, defaultMarket string, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{
		engine:        engine,
		defaultMarket: defaultMarket,
		logger:        logHandler(logger, "traders"),
	}
}

func (h *TraderHandler) marketID(r *http.Request) string {
	if m := r.URL.Query().Get("market_id"); m != "" {
		return m
	}
	return h.defaultMarket
}

// ListTopTraders handles GET /api/traders. limit defaults to 20, max 100.
func (h *TraderHandler) ListTopTraders(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.engine.TopTraders(r.Context(), h.marketID(r), parseLimit(r, 20, 100))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"traders": ranked,
		"count":   len(ranked),
	})
}

// ListWhaleTrades handles GET /api/whales. limit defaults to 50, max 500.
func (h *TraderHandler) ListWhaleTrades(w http.ResponseWriter, r *http.Request) {
	whales, err := h.engine.WhaleTrades(r.Context(), h.marketID(r), parseLimit(r, 50, 500))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "whale feed failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"whale_threshold": h.engine.WhaleThreshold(),
		"trades":          whales,
		"count":           len(whales),
	})
}
