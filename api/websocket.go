package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to WebSocket clients.
const (
	EventEstimateComplete = "estimate_complete"
	EventVerifyProgress   = "verify_progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes only
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 256
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ============================================================
// Hub
// ============================================================

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	logger     *slog.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, sendBuffer),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.Type) {
					continue
				}
				if !c.deliver(msg) {
					h.logger.Warn("websocket client too slow, disconnecting")
					delete(h.clients, c)
					c.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all subscribed clients. Messages are
// dropped when the hub is backlogged.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(c *WSClient) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(c *WSClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ============================================================
// Client
// ============================================================

// WSClient represents a single WebSocket connection. A client with no
// subscriptions receives every event.
type WSClient struct {
	send chan WSMessage

	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

func newWSClient() *WSClient {
	return &WSClient{send: make(chan WSMessage, sendBuffer), topics: make(map[string]bool)}
}

func (c *WSClient) wants(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics) == 0 || c.topics[event]
}

func (c *WSClient) subscribe(events []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.topics[e] = true
	}
}

// deliver queues msg without blocking; false means the buffer is full.
func (c *WSClient) deliver(msg WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ============================================================
// Connection pumps
// ============================================================

// handleWebSocket upgrades HTTP connections to WebSocket and streams hub
// events to the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := newWSClient()
	s.wsHub.Register(client)

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump handles client commands: {"type":"ping"} and
// {"type":"subscribe","data":["verify_progress"]}.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		s.wsHub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "err", err)
			}
			return
		}

		var cmd struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "subscribe":
			var events []string
			if err := json.Unmarshal(cmd.Data, &events); err != nil {
				client.deliver(WSMessage{Type: "error", Data: "subscribe expects a list of event types"})
				continue
			}
			client.subscribe(events)
			client.deliver(WSMessage{Type: "subscribed", Data: events})
		case "ping":
			client.deliver(WSMessage{Type: "pong"})
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
