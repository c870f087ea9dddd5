package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/platform/polymarket"
)

// wsTestServer upgrades one connection, captures the subscribe command, and
// pushes the given frames before closing.
func wsTestServer(t *testing.T, frames []string, subscribed chan<- polymarket.WSCommand) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd polymarket.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		select {
		case subscribed <- cmd:
		default:
		}

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSubscriberIngestsStreamTrades(t *testing.T) {
	frames := []string{
		`[{"event_type": "last_trade_price", "transactionHash": "0x1", "proxyWallet": "0xa", "side": "BUY", "price": "0.5", "size": "10", "timestamp": "1735689600"}]`,
		`{"event_type": "book", "asset_id": "123"}`,
		`{"event_type": "trade", "transactionHash": "0x2", "proxyWallet": "0xb", "side": "SELL", "price": "0.6", "size": "4"}`,
	}

	subscribed := make(chan polymarket.WSCommand, 1)
	server := wsTestServer(t, frames, subscribed)
	defer server.Close()

	ledger := newMemLedger()
	sub := NewSubscriber(
		SubscriberConfig{ConditionID: "0xm", TokenIDs: []string{"111", "222"}},
		polymarket.NewStreamClient(wsURL(server)),
		ledger,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx)
	}()

	select {
	case cmd := <-subscribed:
		assert.Equal(t, "subscribe", cmd.Type)
		assert.Equal(t, "market", cmd.Channel)
		assert.Equal(t, []string{"111", "222"}, cmd.AssetIDs)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe command never arrived")
	}

	require.Eventually(t, func() bool {
		return ledger.count() == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, sub.IsConnected())
	assert.Equal(t, StateSubscribed, sub.State())
	assert.Equal(t, int64(2), sub.Stats().StreamTrades)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop on cancellation")
	}
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestSubscriberReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := attempts.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Drop the first connection right after subscribe; serve a trade on
		// the second.
		var cmd polymarket.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			conn.Close()
			return
		}
		if attempt == 1 {
			conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event_type": "trade", "transactionHash": "0x9", "proxyWallet": "0xa", "side": "BUY", "price": "0.4", "size": "2"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	defer server.Close()

	ledger := newMemLedger()
	sub := NewSubscriber(
		SubscriberConfig{ConditionID: "0xm"},
		polymarket.NewStreamClient(wsURL(server)),
		ledger,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sub.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return ledger.count() == 1
	}, 10*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, sub.Stats().Reconnects, int64(1))

	cancel()
	<-done
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
}
