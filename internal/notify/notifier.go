// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). Alerts are filtered by event type so operators
// receive only the categories they subscribed to.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Event types emitted by the service.
const (
	EventWhaleTrade = "whale_trade"
	EventError      = "error"
)

// Notifier dispatches alerts to the registered senders, filtered by event
// type. An empty event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events whose type appears in the events slice are forwarded.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WhaleTrade formats and sends an alert for a trade at or above the whale
// threshold. identity is the trader's display name when one is known.
func (n *Notifier) WhaleTrade(ctx context.Context, t domain.Trade, identity string) error {
	if identity == "" {
		identity = shortWallet(t.ProxyWallet)
	}

	title := fmt.Sprintf("Whale %s: $%.0f", t.Side, t.Amount)
	message := fmt.Sprintf(
		"%s %s %.1f shares of %q at $%.3f ($%.2f)\nMarket: %s\nTime: %s",
		identity, strings.ToLower(string(t.Side)), t.Size, t.Outcome, t.Price, t.Amount,
		t.MarketTitle,
		time.Unix(t.MatchTime, 0).UTC().Format(time.RFC3339),
	)

	return n.notify(ctx, EventWhaleTrade, title, message)
}

// Error sends an operational error alert.
func (n *Notifier) Error(ctx context.Context, title, message string) error {
	return n.notify(ctx, EventError, title, message)
}

// notify applies the event filter and dispatches to every sender. A single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// shortWallet abbreviates a wallet address for display, 0x1234...abcd style.
func shortWallet(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}
