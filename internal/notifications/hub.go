package notifications

import (
	"context"
	"errors"
	"sync"

	"propertyhub/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerAdmin = 8
	maxTotalConns    = 1000
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrAdminConnLimit  = errors.New("admin connection limit reached")
	ErrHubClosed       = errors.New("property feed is shutting down")
)

// Hub tracks admin websocket connections to the property feed.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Register adds a connection for adminID, enforcing per-admin and global limits.
func (h *Hub) Register(adminID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[adminID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[adminID] = m
	}
	if len(m) >= maxConnsPerAdmin {
		return nil, ErrAdminConnLimit
	}

	client := newClient(h, conn, adminID)
	m[client] = struct{}{}
	h.totalConns++
	middleware.ActiveWebSockets.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.AdminID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.AdminID)
	}
	h.totalConns--
	middleware.ActiveWebSockets.Dec()
	close(client.Send)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll sends message to every connected admin.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring relays every property event published through n to this hub's clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPropertySubscriber(ctx, h.BroadcastAll)
}

// Shutdown closes every client's send channel; each WritePump then sends a close
// frame and closes its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, adminConns := range h.conns {
		for client := range adminConns {
			close(client.Send)
			middleware.ActiveWebSockets.Dec()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
