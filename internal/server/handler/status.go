package handler

import (
	"net/http"
	"time"

	"github.com/polywatch/engine/internal/ingest"
	"github.com/polywatch/engine/internal/profile"
)

// StatusHandler reports the ingestion pipeline's runtime state.
type StatusHandler struct {
	marketID   string
	poller     *ingest.Poller
	subscriber *ingest.Subscriber
	refresher  *profile.Refresher
}

// NewStatusHandler creates a StatusHandler. refresher may be nil when the
// profile refresher is disabled.
func NewStatusHandler(marketID string, poller *ingest.Poller, subscriber *ingest.Subscriber, refresher *profile.Refresher) *StatusHandler {
	return &StatusHandler{
		marketID:   marketID,
		poller:     poller,
		subscriber: subscriber,
		refresher:  refresher,
	}
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"market_id": h.marketID,
		"timestamp": time.Now().Unix(),
		"poller":    h.poller.Stats(),
		"stream":    h.subscriber.Stats(),
	}
	if h.refresher != nil {
		payload["profile_refresher"] = h.refresher.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}
