package handler

import (
	"log/slog"
	"net/http"

	"github.com/polywatch/engine/internal/analytics"
	"github.com/polywatch/engine/internal/domain"
)

// StatsHandler serves the aggregate market views.
type StatsHandler struct {
	ledger        domain.Ledger
	engine        *analytics.Engine
	defaultMarket string
	logger        *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(ledger domain.Ledger, engine *analytics.Engine, defaultMarket string, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		ledger:        ledger,
		engine:        engine,
		defaultMarket: defaultMarket,
		logger:        logHandler(logger, "stats"),
	}
}

// marketID resolves the market parameter with the configured fallback.
func (h *StatsHandler) marketID(r *http.Request) string {
	if m := r.URL.Query().Get("market_id"); m != "" {
		return m
	}
	return h.defaultMarket
}

// GetStats handles GET /api/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Summary(r.Context(), h.marketID(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "summary failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetVolume handles GET /api/volume, the raw outcome x side breakdown.
func (h *StatsHandler) GetVolume(w http.ResponseWriter, r *http.Request) {
	volumes, err := h.ledger.VolumeByOutcome(r.Context(), h.marketID(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "volume breakdown failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"volume_by_outcome": volumes,
	})
}
