package models

import (
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
)

// Message types for WebSocket communication
const (
	MessageTypeDatasetRefreshed = "dataset_refreshed"
	MessageTypeSubscribe        = "subscribe"
	MessageTypeUnsubscribe      = "unsubscribe"
	MessageTypeHeartbeat        = "heartbeat"
	MessageTypeError            = "error"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriptionFilter represents client subscription preferences.
// An empty Team follows all teams.
type SubscriptionFilter struct {
	Team string `json:"team,omitempty"`
}

// RefreshNotice tells a dashboard that a new snapshot is available, with the
// summary already computed for the client's team filter
type RefreshNotice struct {
	Team     string        `json:"team"`
	Summary  stats.Summary `json:"summary"`
	Snapshot SnapshotInfo  `json:"snapshot"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
