package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playpool/snooker/internal/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by middleware.WebSocketCORSCheck before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a connected WebSocket client
type Client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
}

// Hub maintains the set of active clients, one connection per player.
type Hub struct {
	clients    map[string]*Client // playerID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled. Connections still
// open at that point are closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// stop marks the hub as stopped and closes every connection.
func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	log.Println("[WS] Hub stopped")
}

// add registers client, replacing an older connection of the same player.
func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.clients[client.playerID]; exists {
		log.Printf("[WS] Player %s reconnecting - closing old connection", client.playerID)
		if old.conn != nil {
			old.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
				time.Now().Add(writeWait))
		}
		close(old.send)
	}
	h.clients[client.playerID] = client
	log.Printf("[WS] Player %s connected (clients=%d)", client.playerID, len(h.clients))
}

// remove drops client if it is still the player's current connection.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[client.playerID]; ok && cur == client {
		delete(h.clients, client.playerID)
		close(client.send)
		log.Printf("[WS] Player %s disconnected", client.playerID)
	}
}

// SendToPlayer sends a message to a specific player
func (h *Hub) SendToPlayer(playerID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[playerID]
	if !exists {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Printf("[WS] SendToPlayer dropped message for player %s (buffer full)", playerID)
	}
}

// Broadcast sends a message to every connected player
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Broadcast dropped message for player %s (buffer full)", client.playerID)
		}
	}
}

// Dispatch routes a game event: maximum breaks go to everyone, the rest to
// the player concerned.
func (h *Hub) Dispatch(ev game.Event) {
	if ev.Type == game.EventMaximumBreak {
		h.Broadcast(ev)
		return
	}
	h.SendToPlayer(ev.Player, ev)
}

// Publish dispatches in-process; used when no redis is configured.
func (h *Hub) Publish(_ context.Context, ev game.Event) error {
	h.Dispatch(ev)
	return nil
}

// Serve upgrades the request and attaches the connection to playerID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:     conn,
		playerID: playerID,
		send:     make(chan []byte, 64),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// readPump only services control frames; players never send game input over
// the socket.
func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for player %s: %v", c.playerID, err)
			}
			return
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for player %s: %v", c.playerID, err)
				return
			}
		}
	}
}
