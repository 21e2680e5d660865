package notify

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/events"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the cors middleware and the admin guard
	},
}

// Hub fans payment events out to connected administrators
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

// NewHub returns a hub with no clients
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// ServeWS upgrades the request and keeps the connection registered until the
// peer goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()

	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	zap.S().Debugw("payments feed client connected", "clientId", id)

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		conn.Close()
	}()

	// read until the client disconnects, the feed is one-way
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Clients is the number of open connections
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes event to every client, dropping the ones that fail
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			zap.S().Debugw("dropping payments feed client",
				"clientId", id,
				"error", err)
			conn.Close()
			delete(h.clients, id)
		}
	}
}

// PaymentChanged broadcasts the transition under its routing key
func (h *Hub) PaymentChanged(_ context.Context, ev models.PaymentEvent) {
	h.Broadcast(events.RoutingKey(ev.Type), ev)
}
