package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/export"
)

// ExportHandler serves CSV downloads of the trade ledger.
type ExportHandler struct {
	ledger        domain.Ledger
	defaultMarket string
	logger        *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(ledger domain.Ledger, defaultMarket string, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		ledger:        ledger,
		defaultMarket: defaultMarket,
		logger:        logHandler(logger, "export"),
	}
}

// ExportCSV handles GET /api/export/csv. Same filter parameters as the
// trades endpoint, unbounded row count by default; 404 when nothing matches.
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter := domain.TradeFilter{
		MarketID:  r.URL.Query().Get("market_id"),
		Wallet:    r.URL.Query().Get("wallet"),
		MinAmount: parseFloat(r, "min_amount", 0),
		Limit:     parseLimit(r, 0, 0),
	}
	if filter.MarketID == "" {
		filter.MarketID = h.defaultMarket
	}

	rows, err := h.ledger.QueryTrades(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export query failed",
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no trades match the given filters")
		return
	}

	filename := fmt.Sprintf("trades-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteCSV(w, rows); err != nil {
		// Headers are gone; all we can do is log.
		h.logger.ErrorContext(r.Context(), "csv write failed",
			slog.String("error", err.Error()),
		)
	}
}
