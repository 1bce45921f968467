package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var ErrHubClosed = errors.New("websocket hub is closed")

// Hub fans notification envelopes out to every connected client. The client
// set is owned by the Run goroutine; slow clients are dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
	upgrader   websocket.Upgrader
	log        *logger.Log
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. An empty allowedOrigins list accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        logger.New().With("component", "ws_hub"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowedOrigins) == 0 || origin == "" {
				return true
			}
			return slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
		},
	}
	return h
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.log.Debug("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.count.Store(int64(len(h.clients)))
				h.log.Debug("client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow client")
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

func (h *Hub) publish(ctx context.Context, message []byte) error {
	select {
	case h.broadcast <- message:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify wraps data in an envelope and broadcasts it to local clients.
func (h *Hub) Notify(ctx context.Context, event string, data any) error {
	env, err := notify.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return h.Deliver(ctx, env)
}

// Deliver broadcasts an envelope that was already built, e.g. one received
// from the redis bus.
func (h *Hub) Deliver(ctx context.Context, env notify.Envelope) error {
	message, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.publish(ctx, message)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.WithError(err).Warn("websocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
