package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/web"
)

// DashboardPage serves the HTML dashboard
// GET /?team=&limit=
func (h *Handler) DashboardPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	data := web.PageData{
		Team:  teamParam(r, nil),
		Limit: h.parseLimit(r),
	}

	snapshot, err := h.snapshots.Get(ctx)
	switch {
	case errors.Is(err, stats.ErrEmptyDataset):
		data.Empty = true
	case err != nil:
		data.Error = "stats source unavailable"
		templ.Handler(web.DashboardPage(data), templ.WithStatus(http.StatusServiceUnavailable)).ServeHTTP(w, r)
		return
	default:
		v := h.viewOf(r, snapshot)
		d := buildDashboard(v)
		data.Team = v.team
		data.Charts = pageCharts(v)
		data.Teams = d.Teams
		data.Summary = d.Summary
		data.TopGoals = d.TopGoals
		data.TopCombined = d.TopCombined
		data.GoalsByTeam = d.GoalsByTeam
		data.Version = d.Snapshot.Version
		data.LoadedAt = d.Snapshot.LoadedAt
	}

	templ.Handler(web.DashboardPage(data)).ServeHTTP(w, r)
}
