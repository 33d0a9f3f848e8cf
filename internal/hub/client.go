package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must stay below pongWait
	pingPeriod = (pongWait * 9) / 10

	// Dashboards only send subscribe, unsubscribe and heartbeat frames
	maxMessageSize = 512

	sendBufferSize = 64
)

// Client is one open dashboard tab. Its filter decides which team summary
// it receives when the snapshot is refreshed.
type Client struct {
	ID   string
	conn *websocket.Conn
	Send chan models.ServerMessage
	hub  registry

	filter   models.SubscriptionFilter
	filterMu sync.RWMutex

	closed bool
	sendMu sync.Mutex
}

type registry interface {
	Unregister(client *Client)
}

// NewClient creates a client registered with h once the caller hands it over
func NewClient(id string, conn *websocket.Conn, h *Hub) *Client {
	return newClient(id, conn, h)
}

func newClient(id string, conn *websocket.Conn, hub registry) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		Send: make(chan models.ServerMessage, sendBufferSize),
		hub:  hub,
	}
}

// ReadPump applies subscription changes until the peer leaves or ctx ends
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	// Closing the connection unblocks ReadJSON on shutdown
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Unexpected websocket close", slog.String("client", c.ID), slog.String("error", err.Error()))
			}
			return
		}

		c.handleClientMessage(msg)
	}
}

// WritePump forwards queued messages and keeps the connection alive with pings
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var err error

		select {
		case <-ctx.Done():
			c.writeClose()
			return
		case message, ok := <-c.Send:
			if !ok {
				c.writeClose()
				return
			}
			err = c.writeJSON(message)
		case <-ticker.C:
			err = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}

		if err != nil {
			slog.Warn("Websocket write failed", slog.String("client", c.ID), slog.String("error", err.Error()))
			return
		}
	}
}

func (c *Client) writeJSON(v any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) writeClose() {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
}

// TrySend queues msg without blocking. It reports false when the buffer is
// full or the client has already left.
func (c *Client) TrySend(msg models.ServerMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// close closes Send once. The hub calls it when the client leaves.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) SetFilter(filter models.SubscriptionFilter) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filter = filter
}

func (c *Client) GetFilter() models.SubscriptionFilter {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filter
}

func (c *Client) handleClientMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeSubscribe:
		c.handleSubscribe(msg.Payload)
	case models.MessageTypeUnsubscribe:
		c.SetFilter(models.SubscriptionFilter{})
		slog.Debug("Client unsubscribed", slog.String("client", c.ID))
	case models.MessageTypeHeartbeat:
		c.reply(models.MessageTypeHeartbeat, c.GetFilter())
	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

// handleSubscribe switches the team the client's refresh summaries are computed for.
// A missing team follows all teams.
func (c *Client) handleSubscribe(payload map[string]interface{}) {
	var filter models.SubscriptionFilter

	if raw, present := payload["team"]; present && raw != nil {
		team, ok := raw.(string)
		if !ok {
			c.sendError("invalid_filter", "team must be a string")
			return
		}
		filter.Team = team
	}

	c.SetFilter(filter)
	slog.Debug("Client subscribed", slog.String("client", c.ID), slog.String("team", filter.Team))
}

func (c *Client) sendError(code, message string) {
	c.reply(models.MessageTypeError, models.ErrorMessage{Code: code, Message: message})
}

func (c *Client) reply(msgType string, payload any) {
	c.TrySend(models.ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
