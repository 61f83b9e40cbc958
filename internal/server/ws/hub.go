// Package ws fans realtime market events out to browser WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/polysight/marketgate/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection. Clients with no explicit
// subscriptions receive every market's events.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed market IDs
	mu   sync.RWMutex
}

// commandMsg is the JSON message a client sends to manage subscriptions,
// mirroring the upstream protocol: {"type":"subscribe","channel":"market","id":"..."}.
type commandMsg struct {
	Type    string `json:"type"` // "subscribe" or "unsubscribe"
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

// broadcastMsg carries an encoded frame plus the market it concerns.
type broadcastMsg struct {
	marketID string
	data     []byte
}

// Hub manages connected WebSocket clients and routes price updates and
// trades to those subscribed to the relevant market.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHub creates a hub. Call Run before broadcasting.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
		startedAt:  time.Now().UTC(),
	}
}

// BroadcastPriceUpdate queues a price_update frame for subscribed clients.
// Safe to call from any goroutine; drops the frame when the hub is saturated.
func (h *Hub) BroadcastPriceUpdate(update domain.PriceUpdate) {
	data, err := json.Marshal(map[string]any{
		"type":    "price_update",
		"payload": update,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- broadcastMsg{marketID: update.MarketID, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping price update")
	}
}

// BroadcastTrade queues a trade frame for subscribed clients.
func (h *Hub) BroadcastTrade(trade domain.Trade) {
	data, err := json.Marshal(map[string]any{
		"type":    "trade",
		"payload": trade,
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- broadcastMsg{marketID: trade.MarketID, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping trade")
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine
// and exits when the provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Signal handlers first so no goroutine can touch a send
			// channel after it is closed below. Send channels are only
			// written from this loop once a client is registered.
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			c.sendConnectedStatus()
			h.logger.Info("ws: client connected",
				slog.String("client_id", c.id),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.String("client_id", c.id),
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.wantsMarket(msg.marketID) {
					select {
					case c.send <- msg.data:
					default:
						// Client's send buffer is full; drop the message.
						h.logger.Warn("ws: dropping message for slow client",
							slog.String("client_id", c.id),
						)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		// Hub already shut down; no goroutine will ever drain c.send.
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump reads subscription management frames from the client.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// The shutdown path already removed this client.
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("client_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var cmd commandMsg
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		c.handleCommand(cmd)
	}
}

// handleCommand processes subscribe/unsubscribe requests from the client.
func (c *client) handleCommand(cmd commandMsg) {
	if cmd.Channel != "market" || cmd.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Type {
	case "subscribe":
		c.subs[cmd.ID] = true
	case "unsubscribe":
		delete(c.subs, cmd.ID)
	}
}

// sendConnectedStatus pushes a small JSON envelope so clients can mark the
// connection healthy before any market events flow. It runs on the hub loop,
// which also owns closing send channels, so the two never race.
func (c *client) sendConnectedStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type": "status",
		"payload": map[string]any{
			"connected":      true,
			"client_id":      c.id,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// wantsMarket reports whether the client should receive events for the given
// market. No subscriptions means everything.
func (c *client) wantsMarket(marketID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subs) == 0 {
		return true
	}
	return c.subs[marketID]
}

// writePump pumps messages from the hub to the WebSocket connection and
// sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
