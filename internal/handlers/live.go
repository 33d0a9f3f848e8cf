package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/hub"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same origin checks are left to the CORS configuration
		return true
	},
}

// LiveHandler serves the dashboard websocket and hub metrics
type LiveHandler struct {
	hub       *hub.Hub
	snapshots *cache.SnapshotCache
	ctx       context.Context
}

// NewLiveHandler creates a new live handler. ctx bounds the lifetime of every connection.
func NewLiveHandler(ctx context.Context, h *hub.Hub, snapshots *cache.SnapshotCache) *LiveHandler {
	return &LiveHandler{
		hub:       h,
		snapshots: snapshots,
		ctx:       ctx,
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
// GET /ws?team=
func (h *LiveHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade error", slog.String("error", err.Error()))
		return
	}

	clientID := uuid.New().String()
	c := hub.NewClient(clientID, conn, h.hub)
	var teams []string
	if snapshot := h.snapshots.Peek(); snapshot != nil {
		teams = snapshot.Teams
	}
	c.SetFilter(models.SubscriptionFilter{Team: teamParam(r, teams)})

	h.hub.Register(c)

	// Use handler context, not request context
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)

	slog.Debug("WebSocket connection established", slog.String("client", clientID))
}

// HandleMetrics returns hub metrics and the current snapshot
// GET /metrics
func (h *LiveHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := h.hub.GetMetrics()
	if snapshot := h.snapshots.Peek(); snapshot != nil {
		metrics["snapshot"] = snapshotInfo(snapshot)
	}

	respondJSON(w, http.StatusOK, metrics)
}
