package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywatch/engine/internal/analytics"
	"github.com/polywatch/engine/internal/domain"
)

// WalletHandler serves the per-wallet analytics view.
type WalletHandler struct {
	ledger   domain.Ledger
	profiles domain.ProfileStore
	engine   *analytics.Engine
	logger   *slog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ledger domain.Ledger, profiles domain.ProfileStore, engine *analytics.Engine, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:   ledger,
		profiles: profiles,
		engine:   engine,
		logger:   logHandler(logger, "wallet"),
	}
}

// GetWallet handles GET /api/wallet/{address}. Responds 400 for a malformed
// address and 404 for a wallet the ledger has never seen.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(r.PathValue("address"))
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	report, err := h.engine.WalletReport(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "wallet report failed",
			slog.String("wallet", address),
			slog.String("error", err.Error()),
		)
		writeStoreError(w, err)
		return
	}

	payload := map[string]any{
		"wallet":           report.Wallet,
		"stats":            report.Stats,
		"positions":        report.Positions,
		"closed_positions": report.Closed,
	}

	// Profile and recent trades are best-effort decoration; their absence
	// never fails the report.
	if profile, err := h.profiles.GetProfile(r.Context(), address); err == nil {
		payload["profile"] = profile
	}

	if rows, err := h.ledger.QueryTrades(r.Context(), domain.TradeFilter{
		Wallet: address,
		Limit:  25,
	}); err == nil {
		payload["recent_trades"] = h.engine.ClassifyAll(rows)
	}

	writeJSON(w, http.StatusOK, payload)
}
