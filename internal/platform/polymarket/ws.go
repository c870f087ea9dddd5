package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polywatch/engine/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// StreamClient dials the CLOB market-channel WebSocket. Each Dial produces
// an independent StreamConn; reconnect policy belongs to the caller.
type StreamClient struct {
	wsURL string
}

// NewStreamClient creates a stream client for the given WebSocket URL.
//
// wsURL is the market channel endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewStreamClient(wsURL string) *StreamClient {
	return &StreamClient{wsURL: wsURL}
}

// Dial establishes a WebSocket connection and starts its keep-alive loop.
func (s *StreamClient) Dial(ctx context.Context) (*StreamConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	sc := &StreamConn{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go sc.pingLoop()

	return sc, nil
}

// StreamConn is one live market-channel connection.
type StreamConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Subscribe sends the market-channel subscription naming the given token IDs.
func (c *StreamConn) Subscribe(assetIDs []string) error {
	cmd := WSCommand{
		Type:     "subscribe",
		Channel:  "market",
		AssetIDs: assetIDs,
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// ReadEvents blocks until the next frame arrives and returns the trade
// events it carries. The feed batches events, so a single frame may hold a
// JSON array; non-trade frames and plain-text keep-alives return an empty
// slice. A transport error wraps domain.ErrWSDisconnect.
func (c *StreamConn) ReadEvents() ([]WSTradeEvent, error) {
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("polymarket/ws: read: %w: %v", domain.ErrWSDisconnect, err)
	}

	return ParseEvents(message), nil
}

// Close shuts down the connection and stops the keep-alive loop.
func (c *StreamConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return c.conn.Close()
}

// pingLoop sends pings at pingPeriod until the connection closes.
func (c *StreamConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ParseEvents extracts trade events from a raw frame. Frames may hold a
// single event object or an array of them; anything else is skipped.
func ParseEvents(message []byte) []WSTradeEvent {
	trimmed := strings.TrimSpace(string(message))
	if trimmed == "" || trimmed == "PING" || trimmed == "PONG" {
		return nil
	}

	var events []WSTradeEvent
	if err := json.Unmarshal(message, &events); err != nil {
		var single WSTradeEvent
		if err := json.Unmarshal(message, &single); err != nil {
			return nil
		}
		events = []WSTradeEvent{single}
	}

	out := events[:0]
	for _, e := range events {
		if e.IsTrade() {
			out = append(out, e)
		}
	}
	return out
}
