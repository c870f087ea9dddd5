package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/polywatch/engine/internal/domain"
	"github.com/polywatch/engine/internal/platform/polymarket"
)

// State is the subscriber's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

// String returns the lowercase state name used in API responses.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// StreamDialer is the slice of the stream client the subscriber needs.
type StreamDialer interface {
	Dial(ctx context.Context) (*polymarket.StreamConn, error)
}

// SubscriberConfig holds the subscriber's market settings.
type SubscriberConfig struct {
	ConditionID string
	TokenIDs    []string
}

// SubscriberStats is a snapshot of the subscriber's counters.
type SubscriberStats struct {
	State        string `json:"state"`
	Connected    bool   `json:"connected"`
	StreamTrades int64  `json:"stream_trades_total"`
	Reconnects   int64  `json:"reconnects"`
}

// Subscriber maintains a push subscription to the market's trade stream and
// writes incoming trades through the ledger. It reconnects forever with
// exponential backoff; only ctx cancellation stops it.
type Subscriber struct {
	cfg    SubscriberConfig
	dialer StreamDialer
	ledger domain.Ledger
	logger *slog.Logger

	state        atomic.Int32
	streamTrades atomic.Int64
	reconnects   atomic.Int64
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(cfg SubscriberConfig, dialer StreamDialer, ledger domain.Ledger, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		cfg:    cfg,
		dialer: dialer,
		ledger: ledger,
		logger: logger.With(slog.String("component", "subscriber")),
	}
}

// State returns the current connection state without blocking the loop.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether the subscription is live.
func (s *Subscriber) IsConnected() bool {
	return s.State() == StateSubscribed
}

// Stats returns a snapshot of the subscriber's counters.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		State:        s.State().String(),
		Connected:    s.IsConnected(),
		StreamTrades: s.streamTrades.Load(),
		Reconnects:   s.reconnects.Load(),
	}
}

// Run connects, subscribes, and consumes frames until ctx is canceled.
// Every drop restarts the cycle with backoff growing 2s to 60s, reset on a
// successful subscribe.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "subscriber started",
		slog.String("market", s.cfg.ConditionID),
		slog.Int("tokens", len(s.cfg.TokenIDs)),
	)

	backoff := reconnectDelay

	for {
		if ctx.Err() != nil {
			s.state.Store(int32(StateDisconnected))
			s.logger.InfoContext(ctx, "subscriber stopped")
			return ctx.Err()
		}

		s.state.Store(int32(StateConnecting))

		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			s.state.Store(int32(StateDisconnected))
			if errors.Is(err, context.Canceled) {
				continue
			}
			s.logger.WarnContext(ctx, "stream connect failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			backoff = s.sleep(ctx, backoff)
			continue
		}

		if err := conn.Subscribe(s.cfg.TokenIDs); err != nil {
			conn.Close()
			s.state.Store(int32(StateDisconnected))
			s.logger.WarnContext(ctx, "stream subscribe failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			backoff = s.sleep(ctx, backoff)
			continue
		}

		s.state.Store(int32(StateSubscribed))
		s.logger.InfoContext(ctx, "stream subscribed")
		backoff = reconnectDelay

		s.consume(ctx, conn)

		conn.Close()
		s.state.Store(int32(StateDisconnected))
		s.reconnects.Add(1)

		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "stream disconnected",
				slog.Duration("retry_in", backoff),
			)
			backoff = s.sleep(ctx, backoff)
		}
	}
}

// consume reads frames until the connection drops or ctx is canceled.
func (s *Subscriber) consume(ctx context.Context, conn *polymarket.StreamConn) {
	// Unblock the read when ctx is canceled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		events, err := conn.ReadEvents()
		if err != nil {
			return
		}

		for i := range events {
			trade, err := events[i].ToDomainTrade(s.cfg.ConditionID)
			if err != nil {
				s.logger.DebugContext(ctx, "dropping malformed stream frame",
					slog.String("event_type", events[i].EventType),
					slog.String("error", err.Error()),
				)
				continue
			}

			inserted, err := s.ledger.InsertTrade(ctx, trade)
			if err != nil {
				s.logger.ErrorContext(ctx, "stream trade insert failed",
					slog.String("tx_hash", trade.TransactionHash),
					slog.String("error", err.Error()),
				)
				continue
			}
			if inserted {
				s.streamTrades.Add(1)
			}
		}
	}
}

// sleep waits for the current backoff or ctx cancellation and returns the
// next backoff value.
func (s *Subscriber) sleep(ctx context.Context, backoff time.Duration) time.Duration {
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}

	next := backoff * 2
	if next > maxReconnectDelay {
		next = maxReconnectDelay
	}
	return next
}
