package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/charts"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/web"
)

// chartRenderer draws one derived view of a request's snapshot as PNG
type chartRenderer func(io.Writer, view) error

func topGoalsChart(w io.Writer, v view) error {
	return charts.GoalsBar(w, stats.TopByGoals(v.dataset, v.limit))
}

func topCombinedChart(w io.Writer, v view) error {
	return charts.CombinedBar(w, stats.TopByCombinedScore(v.dataset, v.limit))
}

func teamGoalsChart(w io.Writer, v view) error {
	return charts.TeamPie(w, stats.GoalsByTeam(v.dataset))
}

// TopGoalsChart renders the top scorers as a PNG bar chart
// GET /charts/top-goals.png?team=&limit=&v=
func (h *Handler) TopGoalsChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, topGoalsChart)
}

// TopCombinedChart renders the top players by goals plus assists
// GET /charts/top-combined.png?team=&limit=&v=
func (h *Handler) TopCombinedChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, topCombinedChart)
}

// TeamGoalsChart renders goals per team as a PNG pie chart
// GET /charts/team-goals.png?team=&v=
func (h *Handler) TeamGoalsChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, teamGoalsChart)
}

// renderChart serves one chart. When v names a snapshot version that is no
// longer current the request is refused with 409.
func (h *Handler) renderChart(w http.ResponseWriter, r *http.Request, render chartRenderer) {
	v, ok := h.load(w, r)
	if !ok {
		return
	}

	if version, pinned := snapshotVersionParam(r); pinned && version != v.snapshot.Version {
		respondError(w, http.StatusConflict, "snapshot changed", nil)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, v); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to render chart", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Error writing chart", slog.String("error", err.Error()))
	}
}

// pageCharts renders the page's charts from the same view as its tables
func pageCharts(v view) web.ChartImages {
	return web.ChartImages{
		TopGoals:    chartDataURL(topGoalsChart, v),
		TopCombined: chartDataURL(topCombinedChart, v),
		TeamGoals:   chartDataURL(teamGoalsChart, v),
	}
}

// chartDataURL returns the chart as an inline data URL, or "" when there is nothing to plot
func chartDataURL(render chartRenderer, v view) templ.SafeURL {
	var buf bytes.Buffer
	if err := render(&buf, v); err != nil {
		if !errors.Is(err, charts.ErrNoData) {
			slog.Error("Failed to render chart", slog.String("error", err.Error()))
		}
		return ""
	}

	return templ.SafeURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func snapshotVersionParam(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("v")
	if raw == "" {
		return 0, false
	}

	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return version, true
}
