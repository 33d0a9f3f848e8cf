package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/cache"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/db"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/pkg/models"
)

const (
	// MaxLimit caps the top-N size a request may ask for
	MaxLimit = 100

	// Minimum similarity for a fuzzy team match that is not a subsequence match
	searchThreshold = 0.6

	loadTimeout = 10 * time.Second

	// allTeams is accepted as ?team=all. A team whose name is exactly the
	// parameter's spelling takes precedence.
	allTeams = "all"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db        db.StatsDB
	snapshots *cache.SnapshotCache
	topN      int
}

// NewHandler creates a new handler with dependencies. topN is the default
// number of players in the top-N views.
func NewHandler(database db.StatsDB, snapshots *cache.SnapshotCache, topN int) *Handler {
	if topN <= 0 || topN > MaxLimit {
		topN = 10
	}

	return &Handler{
		db:        database,
		snapshots: snapshots,
		topN:      topN,
	}
}

// view is one request's filtered slice of a snapshot
type view struct {
	snapshot *cache.Snapshot
	team     string
	limit    int
	dataset  stats.Dataset
}

// HealthCheck returns the health status of the service
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Check database connectivity
	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "statsboard",
	}
	if snapshot := h.snapshots.Peek(); snapshot != nil {
		health["snapshot"] = snapshotInfo(snapshot)
	}

	respondJSON(w, http.StatusOK, health)
}

// GetDashboard returns every view of the dashboard computed from one snapshot
// Query params: team, limit
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, buildDashboard(v))
}

// GetSummary returns the headline metrics
// Query params: team
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":     v.team,
		"summary":  stats.SummaryMetrics(v.dataset),
		"snapshot": snapshotInfo(v.snapshot),
	})
}

// GetTopGoals returns the top players by goals
// Query params: team, limit
func (h *Handler) GetTopGoals(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	players := stats.TopByGoals(v.dataset, v.limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":    v.team,
		"players": players,
		"count":   len(players),
		"limit":   v.limit,
	})
}

// GetTopCombined returns the top players by goals plus assists
// Query params: team, limit
func (h *Handler) GetTopCombined(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	players := stats.TopByCombinedScore(v.dataset, v.limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":    v.team,
		"players": players,
		"count":   len(players),
		"limit":   v.limit,
	})
}

// GetTeams returns the distinct teams of the current snapshot
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teams": v.snapshot.Teams,
		"count": len(v.snapshot.Teams),
	})
}

// GetTeamGoals returns total goals per team
// Query params: team
func (h *Handler) GetTeamGoals(w http.ResponseWriter, r *http.Request) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":  v.team,
		"teams": stats.GoalsByTeam(v.dataset),
	})
}

// SearchTeams suggests team names close to q, best match first
// Query params: q
func (h *Handler) SearchTeams(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required", nil)
		return
	}

	v, ok := h.load(w, r)
	if !ok {
		return
	}

	matches := matchTeams(query, v.snapshot.Teams)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"matches": matches,
		"count":   len(matches),
	})
}

// Refresh discards the current snapshot and loads a new one from the database
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	snapshot, err := h.snapshots.Refresh(ctx)
	if err != nil {
		respondSnapshotError(w, err)
		return
	}

	slog.Info("Stats snapshot refreshed", slog.Int64("version", snapshot.Version), slog.Int("rows", snapshot.Dataset.Len()))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "refreshed",
		"snapshot": snapshotInfo(snapshot),
	})
}

// load takes the current snapshot and applies the request's team filter and limit
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (view, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	snapshot, err := h.snapshots.Get(ctx)
	if err != nil {
		respondSnapshotError(w, err)
		return view{}, false
	}

	return h.viewOf(r, snapshot), true
}

func (h *Handler) viewOf(r *http.Request, snapshot *cache.Snapshot) view {
	team := teamParam(r, snapshot.Teams)

	return view{
		snapshot: snapshot,
		team:     team,
		limit:    h.parseLimit(r),
		dataset:  snapshot.Dataset.Filter(team),
	}
}

// parseLimit returns the requested top-N size, the default when missing or
// invalid, capped at MaxLimit
func (h *Handler) parseLimit(r *http.Request) int {
	limit := parseIntParam(r, "limit", h.topN)
	if limit <= 0 {
		return h.topN
	}

	return min(limit, MaxLimit)
}

func buildDashboard(v view) models.DashboardResponse {
	return models.DashboardResponse{
		Team:        v.team,
		Limit:       v.limit,
		Summary:     stats.SummaryMetrics(v.dataset),
		TopGoals:    stats.TopByGoals(v.dataset, v.limit),
		TopCombined: stats.TopByCombinedScore(v.dataset, v.limit),
		GoalsByTeam: stats.GoalsByTeam(v.dataset),
		Teams:       v.snapshot.Teams,
		Snapshot:    snapshotInfo(v.snapshot),
	}
}

func snapshotInfo(snapshot *cache.Snapshot) models.SnapshotInfo {
	return models.SnapshotInfo{
		Version:  snapshot.Version,
		RowCount: snapshot.Dataset.Len(),
		LoadedAt: snapshot.LoadedAt,
	}
}

// matchTeams ranks teams by edit distance to query. Subsequence matches are
// always kept; other teams need a similarity above searchThreshold.
func matchTeams(query string, teams []string) []models.TeamMatch {
	q := strings.ToLower(query)
	matches := make([]models.TeamMatch, 0)

	for _, team := range teams {
		name := strings.ToLower(team)
		distance := fuzzy.LevenshteinDistance(q, name)
		similarity := 1 - float64(distance)/float64(max(utf8.RuneCountInString(q), utf8.RuneCountInString(name)))

		if fuzzy.MatchNormalizedFold(query, team) || similarity > searchThreshold {
			matches = append(matches, models.TeamMatch{Team: team, Distance: distance})
		}
	}

	slices.SortStableFunc(matches, func(a, b models.TeamMatch) int {
		return a.Distance - b.Distance
	})

	return matches
}

// Helper functions

// teamParam reads the team filter. "all" in any case means no restriction
// unless one of teams is spelled exactly like the parameter.
func teamParam(r *http.Request, teams []string) string {
	team := strings.TrimSpace(r.URL.Query().Get("team"))
	if strings.EqualFold(team, allTeams) && !slices.Contains(teams, team) {
		return stats.All
	}
	return team
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func respondSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, stats.ErrEmptyDataset) {
		respondError(w, http.StatusNotFound, "no data", nil)
		return
	}

	respondError(w, http.StatusServiceUnavailable, "stats source unavailable", err)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Error encoding response", slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil {
		slog.Error(message, slog.String("error", err.Error()))
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		slog.Error("Error encoding error response", slog.String("error", err.Error()))
	}
}
