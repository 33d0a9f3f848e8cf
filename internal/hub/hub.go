package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
)

// Hub maintains the set of connected dashboards and tells them about new snapshots
type Hub struct {
	// Registered clients
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	// Snapshots to announce
	broadcast chan *cache.Snapshot

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run has returned
	done chan struct{}

	// Metrics
	totalConnections int64
	totalMessages    int64
	metricsMu        sync.Mutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *cache.Snapshot, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	slog.Info("Hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			close(h.done)
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case snapshot := <-h.broadcast:
			h.broadcastSnapshot(snapshot)
		}
	}
}

// Register adds a client to the hub. After shutdown the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a refresh notice for every connected client
func (h *Hub) Broadcast(snapshot *cache.Snapshot) {
	select {
	case h.broadcast <- snapshot:
	default:
		// Broadcast buffer full - drop message
		slog.Warn("Broadcast buffer full, dropping refresh notice", slog.Int64("version", snapshot.Version))
	}
}

// SnapshotRefreshed adapts Broadcast to cache.RefreshFunc
func (h *Hub) SnapshotRefreshed(_ context.Context, snapshot *cache.Snapshot) {
	h.Broadcast(snapshot)
}

// registerClient adds a client to the active clients map
func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.incrementTotalConnections()

	slog.Debug("Client connected", slog.String("client", c.ID), slog.Int("total", len(h.clients)))
}

// unregisterClient removes a client from the active clients map
func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		slog.Debug("Client disconnected", slog.String("client", c.ID), slog.Int("total", len(h.clients)))
	}
}

// broadcastSnapshot sends each client the summary for its own team filter
func (h *Hub) broadcastSnapshot(snapshot *cache.Snapshot) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	dropped := 0

	for _, c := range clients {
		message := models.ServerMessage{
			Type:      models.MessageTypeDatasetRefreshed,
			Payload:   NewRefreshNotice(snapshot, c.GetFilter()),
			Timestamp: time.Now(),
		}

		// Try to send (non-blocking)
		if c.TrySend(message) {
			sent++
		} else {
			dropped++
			// Client buffer full - they're too slow, disconnect them
			go h.Unregister(c)
		}
	}

	if sent > 0 {
		h.incrementTotalMessages()
	}

	if dropped > 0 {
		slog.Warn("Dropped slow clients", slog.Int("count", dropped))
	}
}

// NewRefreshNotice computes the refresh payload for one subscription filter
func NewRefreshNotice(snapshot *cache.Snapshot, filter models.SubscriptionFilter) models.RefreshNotice {
	return models.RefreshNotice{
		Team:    filter.Team,
		Summary: stats.SummaryMetrics(snapshot.Dataset.Filter(filter.Team)),
		Snapshot: models.SnapshotInfo{
			Version:  snapshot.Version,
			RowCount: snapshot.Dataset.Len(),
			LoadedAt: snapshot.LoadedAt,
		},
	}
}

// GetMetrics returns hub metrics
func (h *Hub) GetMetrics() map[string]interface{} {
	h.clientsMu.RLock()
	activeClients := len(h.clients)
	h.clientsMu.RUnlock()

	h.metricsMu.Lock()
	totalConnections := h.totalConnections
	totalMessages := h.totalMessages
	h.metricsMu.Unlock()

	return map[string]interface{}{
		"active_clients":     activeClients,
		"total_connections":  totalConnections,
		"total_messages":     totalMessages,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_usage":    len(h.broadcast),
	}
}

// GetClientCount returns the number of active clients
func (h *Hub) GetClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// shutdown closes all client connections
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	slog.Info("Shutting down hub", slog.Int("clients", len(h.clients)))

	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// incrementTotalConnections safely increments the total connections counter
func (h *Hub) incrementTotalConnections() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalConnections++
}

// incrementTotalMessages safely increments the total messages counter
func (h *Hub) incrementTotalMessages() {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	h.totalMessages++
}
