package charts

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to plot
var ErrNoData = errors.New("no data to plot")

const (
	chartHeight = 480
	minWidth    = 640
	barWidth    = 40
	barSpacing  = 20
)

// GoalsBar renders a bar chart of goals per player, in the order given
func GoalsBar(w io.Writer, rows []stats.PlayerStatRow) error {
	return playerBar(w, "Top scorers", rows, func(r stats.PlayerStatRow) int { return r.Goals })
}

// CombinedBar renders a bar chart of goals plus assists per player, in the order given
func CombinedBar(w io.Writer, rows []stats.PlayerStatRow) error {
	return playerBar(w, "Goals + assists", rows, stats.PlayerStatRow.CombinedScore)
}

// TeamPie renders the share of goals per team. Teams with no positive total are left out.
func TeamPie(w io.Writer, totals []stats.TeamTotal) error {
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		if t.TotalGoals <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", t.Team, t.TotalGoals),
			Value: float64(t.TotalGoals),
		})
	}

	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Title:  "Goals by team",
		Width:  chartHeight,
		Height: chartHeight,
		Values: values,
	}

	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie chart: %w", err)
	}

	return nil
}

func playerBar(w io.Writer, title string, rows []stats.PlayerStatRow, value func(stats.PlayerStatRow) int) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(rows))
	teamColor := make(map[string]drawing.Color)
	lo, hi := 0.0, 0.0
	for _, r := range rows {
		v := float64(value(r))
		lo, hi = math.Min(lo, v), math.Max(hi, v)

		// Bars share a color per team
		color, ok := teamColor[r.Team]
		if !ok {
			color = chart.GetDefaultColor(len(teamColor))
			teamColor[r.Team] = color
		}

		bars = append(bars, chart.Value{
			Label: r.Name,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}

	// A flat range cannot be scaled
	if hi-lo < 1 {
		hi = lo + 1
	}

	bar := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      max(minWidth, len(bars)*(barWidth+barSpacing)+160),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}

	if err := bar.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}

	return nil
}
