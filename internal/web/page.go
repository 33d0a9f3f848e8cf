package web

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"
	templruntime "github.com/a-h/templ/runtime"
	"github.com/dustin/go-humanize"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
)

// ChartImages holds the inline PNG images of one page render
type ChartImages struct {
	TopGoals    templ.SafeURL
	TopCombined templ.SafeURL
	TeamGoals   templ.SafeURL
}

// PageData is everything the dashboard page shows for one team filter
type PageData struct {
	Team        string
	Teams       []string
	Limit       int
	Summary     stats.Summary
	TopGoals    []stats.PlayerStatRow
	TopCombined []stats.PlayerStatRow
	GoalsByTeam []stats.TeamTotal
	Charts      ChartImages
	Version     int64
	LoadedAt    time.Time

	// Empty marks the "no data" state; Error carries a load failure message
	Empty bool
	Error string
}

// pageState is handed to the live update script
type pageState struct {
	Team    string `json:"team"`
	Version int64  `json:"version"`
}

// DashboardPage renders the dashboard document
func DashboardPage(data PageData) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(documentHead)
		w.render(ctx, sidebar(data))
		w.raw("<main>\n")
		w.raw(`<div id="notice">New data is available. <a href="">Reload the page</a></div>` + "\n")

		switch {
		case data.Error != "":
			w.raw("<p>Could not load statistics: ")
			w.text(data.Error)
			w.raw("</p>\n")
		case data.Empty:
			w.raw("<p>No data available.</p>\n")
		default:
			w.render(ctx, metrics(data.Summary))
			w.render(ctx, playerSection("Top "+strconv.Itoa(data.Limit)+" players by goals", "Top scorers",
				"Goals", data.Charts.TopGoals, data.TopGoals, func(r stats.PlayerStatRow) int { return r.Goals }))
			w.render(ctx, playerSection("Top "+strconv.Itoa(data.Limit)+" players by goals and assists", "Top goals and assists",
				"G+A", data.Charts.TopCombined, data.TopCombined, stats.PlayerStatRow.CombinedScore))
			w.render(ctx, teamSection(data.Charts.TeamGoals, data.GoalsByTeam))
		}

		w.raw("</main>\n")
		w.render(ctx, templ.JSONScript("dashboard-state", pageState{Team: data.Team, Version: data.Version}))
		w.raw(liveScript)
		w.raw("</body>\n</html>\n")
	})
}

func sidebar(data PageData) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.raw("<aside>\n")
		w.raw(`<button id="refresh" type="button">Reload data</button>` + "\n<hr>\n")
		w.raw(`<form method="get" action="/">` + "\n")
		w.raw(`<label for="team">Team</label>` + "\n")
		w.raw(`<select id="team" name="team" onchange="this.form.submit()">` + "\n")
		w.raw(`<option value="">All teams</option>` + "\n")
		for _, team := range data.Teams {
			w.raw(`<option value="`)
			w.text(team)
			w.raw(`"`)
			if team == data.Team {
				w.raw(" selected")
			}
			w.raw(">")
			w.text(team)
			w.raw("</option>\n")
		}
		w.raw("</select>\n")
		w.raw(`<input type="hidden" name="limit" value="` + strconv.Itoa(data.Limit) + `">` + "\n")
		w.raw("</form>\n")
		if !data.LoadedAt.IsZero() {
			w.raw(`<p class="muted">Loaded `)
			w.text(humanize.Time(data.LoadedAt))
			w.raw("</p>\n")
		}
		w.raw("</aside>\n")
	})
}

func metrics(summary stats.Summary) templ.Component {
	return component(func(_ context.Context, w *writer) {
		w.raw(`<div class="metrics">` + "\n")
		for _, m := range []struct {
			label string
			value int
		}{
			{"Goals", summary.TotalGoals},
			{"Assists", summary.TotalAssists},
			{"Players", summary.DistinctPlayers},
		} {
			w.raw(`<div class="metric"><div>` + m.label + `</div><div class="value">`)
			w.text(humanize.Comma(int64(m.value)))
			w.raw("</div></div>\n")
		}
		w.raw("</div>\n<hr>\n")
	})
}

func playerSection(title, alt, valueHeader string, chart templ.SafeURL, rows []stats.PlayerStatRow, value func(stats.PlayerStatRow) int) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw("<h2>")
		w.text(title)
		w.raw("</h2>\n")
		w.render(ctx, chartImage(chart, alt))
		w.raw("<table>\n<tr><th>#</th><th>Player</th><th>Team</th><th>")
		w.text(valueHeader)
		w.raw("</th></tr>\n")
		for i, row := range rows {
			w.raw("<tr><td>" + strconv.Itoa(i+1) + "</td><td>")
			w.text(row.Name)
			w.raw("</td><td>")
			w.text(row.Team)
			w.raw(`</td><td class="num">`)
			w.text(humanize.Comma(int64(value(row))))
			w.raw("</td></tr>\n")
		}
		w.raw("</table>\n<hr>\n")
	})
}

func teamSection(chart templ.SafeURL, totals []stats.TeamTotal) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw("<h2>Goals by team</h2>\n")
		w.render(ctx, chartImage(chart, "Goals by team"))
		w.raw("<table>\n<tr><th>Team</th><th>Goals</th></tr>\n")
		for _, total := range totals {
			w.raw("<tr><td>")
			w.text(total.Team)
			w.raw(`</td><td class="num">`)
			w.text(humanize.Comma(int64(total.TotalGoals)))
			w.raw("</td></tr>\n")
		}
		w.raw("</table>\n")
	})
}

// chartImage shows an inline chart, or a placeholder when the view has nothing to plot
func chartImage(src templ.SafeURL, alt string) templ.Component {
	return component(func(_ context.Context, w *writer) {
		if src == "" {
			w.raw(`<p class="muted">No chart available.</p>` + "\n")
			return
		}
		w.raw(`<img src="`)
		w.text(string(src))
		w.raw(`" alt="`)
		w.text(alt)
		w.raw(`">` + "\n")
	})
}

// writer keeps the first write error and ignores everything after it
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err == nil {
		w.err = c.Render(ctx, w.w)
	}
}

// component builds a templ.Component that shares the caller's pooled buffer
func component(body func(ctx context.Context, w *writer)) templ.Component {
	return templruntime.GeneratedTemplate(func(in templruntime.GeneratedComponentInput) (err error) {
		if err = in.Context.Err(); err != nil {
			return err
		}

		buf, isBuffer := templruntime.GetBuffer(in.Writer)
		if !isBuffer {
			defer func() {
				if errRelease := templruntime.ReleaseBuffer(buf); err == nil {
					err = errRelease
				}
			}()
		}

		w := &writer{w: buf}
		body(in.Context, w)

		return w.err
	})
}

const documentHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Player stats</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; display: flex; color: #222; }
aside { width: 240px; padding: 1.5rem; background: #f3f4f6; min-height: 100vh; box-sizing: border-box; }
main { flex: 1; padding: 1.5rem 2rem; }
.metrics { display: flex; gap: 2rem; margin-bottom: 1.5rem; }
.metric { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 1rem 1.5rem; }
.metric .value { font-size: 2rem; font-weight: 600; }
table { border-collapse: collapse; margin-bottom: 1rem; }
td, th { padding: .25rem .75rem; border-bottom: 1px solid #eee; text-align: left; }
td.num { text-align: right; }
img { max-width: 100%; }
#notice { display: none; background: #fff3cd; padding: .5rem 1rem; margin-bottom: 1rem; }
.muted { color: #666; font-size: .85rem; }
</style>
</head>
<body>
`

const liveScript = `<script>
(function () {
  var state = JSON.parse(document.getElementById("dashboard-state").textContent);

  document.getElementById("refresh").addEventListener("click", function () {
    fetch("/api/v1/refresh", { method: "POST" }).then(function () { window.location.reload(); });
  });

  var proto = window.location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + window.location.host + "/ws");
  ws.onopen = function () {
    ws.send(JSON.stringify({ type: "subscribe", payload: { team: state.team } }));
  };
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    if (msg.type === "dataset_refreshed" && msg.payload.snapshot.version !== state.version) {
      document.getElementById("notice").style.display = "block";
    }
  };
})();
</script>
`
