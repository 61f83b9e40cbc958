package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polysight/marketgate/internal/crypto"
	"github.com/polysight/marketgate/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// authSettleDelay is how long to wait after the auth message before
	// subscribing, giving the upstream time to validate the credentials.
	authSettleDelay = 250 * time.Millisecond

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// WSClient is a WebSocket client for the builder realtime feed. It manages
// the connection lifecycle, per-market subscriptions, and dispatches
// price_update and trade frames to registered handlers.
type WSClient struct {
	wsURL string
	auth  crypto.HMACAuth
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []WSCommand

	// Handlers
	priceHandlers []domain.PriceUpdateHandler
	tradeHandlers []domain.TradeHandler
	handlerMu     sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates an unauthenticated realtime client for the given
// WebSocket URL, e.g. "wss://gamma-api.polymarket.com/ws".
func NewWSClient(wsURL string) *WSClient {
	return NewWSClientWithAuth(wsURL, crypto.HMACAuth{})
}

// NewWSClientWithAuth creates a realtime client that authenticates the
// connection before subscribing. An incomplete credential triple skips the
// auth handshake entirely.
func NewWSClientWithAuth(wsURL string, auth crypto.HMACAuth) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		auth:  auth,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously registered subscriptions are replayed.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("builder/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("builder/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	// Authenticated deployments expect an auth message before any
	// subscription, followed by a short settle delay.
	if w.auth.Complete() {
		authCmd := WSAuthCommand{
			Type:       "auth",
			Key:        w.auth.Key,
			Secret:     w.auth.Secret,
			Passphrase: w.auth.Passphrase,
		}
		if err := w.sendCommand(authCmd); err != nil {
			return fmt.Errorf("builder/ws: auth: %w", err)
		}
		time.Sleep(authSettleDelay)
	}

	// Restore any previous subscriptions after reconnect.
	for _, cmd := range w.subscriptions {
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("builder/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to the market channel for the given market IDs.
func (w *WSClient) Subscribe(ctx context.Context, marketIDs ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("builder/ws: not connected")
	}

	for _, id := range marketIDs {
		cmd := WSCommand{
			Type:    "subscribe",
			Channel: "market",
			ID:      id,
		}

		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("builder/ws: subscribe to %s: %w", id, err)
		}

		// Track subscription for reconnection.
		w.subscriptions = append(w.subscriptions, cmd)
	}

	return nil
}

// Unsubscribe stops updates for the given market IDs.
func (w *WSClient) Unsubscribe(ctx context.Context, marketIDs ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("builder/ws: not connected")
	}

	idSet := make(map[string]struct{}, len(marketIDs))
	for _, id := range marketIDs {
		idSet[id] = struct{}{}

		cmd := WSCommand{
			Type:    "unsubscribe",
			Channel: "market",
			ID:      id,
		}
		if err := w.sendCommand(cmd); err != nil {
			return fmt.Errorf("builder/ws: unsubscribe from %s: %w", id, err)
		}
	}

	filtered := w.subscriptions[:0]
	for _, sub := range w.subscriptions {
		if _, found := idSet[sub.ID]; !found {
			filtered = append(filtered, sub)
		}
	}
	w.subscriptions = filtered

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		// Send a close message to the server.
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnPriceUpdate registers a handler called for every price_update frame.
func (w *WSClient) OnPriceUpdate(handler domain.PriceUpdateHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// OnTrade registers a handler called for every trade frame.
func (w *WSClient) OnTrade(handler domain.TradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tradeHandlers = append(w.tradeHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd any) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them to the appropriate handlers. It runs in its own goroutine.
// On disconnect, it attempts to reconnect with exponential backoff.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we've been shut down.
			select {
			case <-w.done:
				return
			default:
			}

			// Attempt reconnection.
			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw frame and routes it by message type.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // Silently drop unparseable frames.
	}

	switch envelope.Type {
	case "price_update":
		var msg PriceUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		update := msg.ToDomain()

		w.handlerMu.RLock()
		handlers := w.priceHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(update)
		}

	case "trade":
		var msg TradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		trade := msg.Trade.ToDomain()

		w.handlerMu.RLock()
		handlers := w.tradeHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(trade)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
