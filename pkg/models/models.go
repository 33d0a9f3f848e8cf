package models

import (
	"time"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
)

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// DashboardResponse carries every derived view of one snapshot for one team filter
type DashboardResponse struct {
	Team        string                `json:"team"`
	Limit       int                   `json:"limit"`
	Summary     stats.Summary         `json:"summary"`
	TopGoals    []stats.PlayerStatRow `json:"top_goals"`
	TopCombined []stats.PlayerStatRow `json:"top_combined"`
	GoalsByTeam []stats.TeamTotal     `json:"goals_by_team"`
	Teams       []string              `json:"teams"`
	Snapshot    SnapshotInfo          `json:"snapshot"`
}

// SnapshotInfo describes the snapshot a response was computed from
type SnapshotInfo struct {
	Version  int64     `json:"version"`
	RowCount int       `json:"row_count"`
	LoadedAt time.Time `json:"loaded_at"`
}

// TeamMatch is one fuzzy team search result
type TeamMatch struct {
	Team     string `json:"team"`
	Distance int    `json:"distance"`
}

// RefreshEvent is published on the refresh stream after a snapshot reload
type RefreshEvent struct {
	InstanceID string    `json:"instance_id"`
	RowCount   int       `json:"row_count"`
	TeamCount  int       `json:"team_count"`
	LoadedAt   time.Time `json:"loaded_at"`
	Published  time.Time `json:"published_at"`
}
