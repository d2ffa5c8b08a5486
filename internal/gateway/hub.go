package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mcoot/paddleduel/internal/dependencies/notifier"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
)

// Hub tracks live clients by connection ID and delivers events to them
type Hub struct {
	clients map[model.ConnectionID]*Client
	mu      sync.RWMutex
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Ensure Hub implements Notifier
var _ notifier.Notifier = (*Hub)(nil)

// NewHub creates an empty Hub
func NewHub(m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnectionID]*Client),
		metrics: m,
		logger:  logger.With(slog.String("component", "gateway")),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected",
		slog.String("connection_id", string(client.id)),
		slog.Int("total_clients", count))
}

// Unregister removes a client and closes its send buffer
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok && current == client {
		client.closeSend()
		h.logger.Info("client disconnected",
			slog.String("connection_id", string(client.id)),
			slog.Duration("connection_duration", client.connectedFor()),
			slog.Int("total_clients", count))
	}
}

// Send delivers an event to one connection. Unknown connections and full
// buffers drop the event.
func (h *Hub) Send(connID model.ConnectionID, event model.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	h.sendRaw(connID, msg)
}

// Broadcast delivers one event to several connections
func (h *Hub) Broadcast(connIDs []model.ConnectionID, event model.Event) {
	if len(connIDs) == 0 {
		return
	}
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	for _, id := range connIDs {
		h.sendRaw(id, msg)
	}
}

func (h *Hub) sendRaw(connID model.ConnectionID, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		h.metrics.OutboundDropped()
		h.logger.Warn("message dropped - client buffer full",
			slog.String("connection_id", string(connID)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Their handlers then run the normal
// disconnect path.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("gateway hub closed", slog.Int("disconnected_clients", len(clients)))
}
