package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jal-drishti/streamd/internal/logger"
)

const clientWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local-network dashboard; same policy as the HTTP CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamClient is one connected stream subscriber. Writes are serialized
// by the per-client mutex since broadcasts and control frames come from
// different goroutines.
type streamClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamClient) writeJSON(v interface{}, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(v)
}

// Hub is the registry of connected stream clients. It replaces any notion
// of a single global connection: every message goes to all clients, and a
// failed write evicts only the client it failed for.
type Hub struct {
	logger  *logger.Logger
	mu      sync.RWMutex
	clients map[string]*streamClient
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log,
		clients: make(map[string]*streamClient),
	}
}

// Add registers a connection and returns its client ID
func (h *Hub) Add(conn *websocket.Conn) string {
	client := &streamClient{id: uuid.New().String(), conn: conn}
	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Stream client connected", "client_id", client.id, "clients", count)
	return client.id
}

// Remove unregisters a connection and closes it
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.conn.Close()
		h.logger.Info("Stream client disconnected", "client_id", id, "clients", count)
	}
}

// Send delivers v to a single client
func (h *Hub) Send(id string, v interface{}) error {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return client.writeJSON(v, clientWriteTimeout)
}

// Broadcast delivers v to every connected client. The payload is
// marshalled once; clients whose writes fail are evicted.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast payload", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.mu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		err := client.conn.WriteMessage(websocket.TextMessage, payload)
		client.mu.Unlock()
		if err != nil {
			h.logger.Warn("Dropping stream client after write failure",
				"client_id", client.id, "error", err)
			h.Remove(client.id)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*streamClient)
	h.mu.Unlock()

	for _, client := range clients {
		client.conn.Close()
	}
}
