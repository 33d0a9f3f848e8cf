package stats_test

import (
	"encoding/json"
	"testing"

	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []stats.PlayerStatRow {
	return []stats.PlayerStatRow{
		{Name: "Ana", Team: "Red", Goals: 3, Assists: 1},
		{Name: "Bo", Team: "Blue", Goals: 5, Assists: 0},
		{Name: "Cy", Team: "Red", Goals: 5, Assists: 2},
	}
}

func mustLoad(t *testing.T, rows []stats.PlayerStatRow) stats.Dataset {
	t.Helper()

	dataset, err := stats.Load(rows)
	require.NoError(t, err)

	return dataset
}

func names(rows []stats.PlayerStatRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Name)
	}

	return out
}

func TestLoadEmpty(t *testing.T) {
	_, err := stats.Load(nil)
	require.ErrorIs(t, err, stats.ErrEmptyDataset)

	_, err = stats.Load([]stats.PlayerStatRow{})
	require.ErrorIs(t, err, stats.ErrEmptyDataset)
}

func TestLoadCopiesInput(t *testing.T) {
	rows := sampleRows()
	dataset := mustLoad(t, rows)

	rows[0].Goals = 99
	require.Equal(t, 3, dataset.Rows()[0].Goals)

	out := dataset.Rows()
	out[1].Goals = 42
	require.Equal(t, 5, dataset.Rows()[1].Goals)
}

func TestTopByGoalsStableTies(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	top := stats.TopByGoals(dataset, 2)
	require.Len(t, top, 2)
	require.Equal(t, []string{"Bo", "Cy"}, names(top))
	require.Equal(t, 5, top[0].Goals)
	require.Equal(t, 5, top[1].Goals)

	require.Equal(t, stats.Summary{TotalGoals: 13, TotalAssists: 3, DistinctPlayers: 3}, stats.SummaryMetrics(dataset))
}

func TestFilterAndGoalsByTeam(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	red := stats.ApplyFilter(dataset, "Red")
	require.Equal(t, []string{"Ana", "Cy"}, names(red.Rows()))
	require.Equal(t, []stats.TeamTotal{{Team: "Red", TotalGoals: 8}}, stats.GoalsByTeam(red))

	// The source dataset is untouched and can be filtered again.
	require.Equal(t, 3, dataset.Len())
	require.Equal(t, []string{"Bo"}, names(dataset.Filter("Blue").Rows()))
}

func TestDistinctPlayersAcrossTeams(t *testing.T) {
	dataset := mustLoad(t, []stats.PlayerStatRow{
		{Name: "Ana", Team: "Red", Goals: 1, Assists: 0},
		{Name: "Ana", Team: "Blue", Goals: 2, Assists: 1},
		{Name: "Bo", Team: "Blue", Goals: 0, Assists: 4},
	})

	summary := stats.SummaryMetrics(dataset)
	require.Equal(t, 2, summary.DistinctPlayers)
	require.Equal(t, 3, summary.TotalGoals)
	require.Equal(t, 5, summary.TotalAssists)

	// Both Ana rows are still ranked independently.
	require.Len(t, stats.TopByGoals(dataset, 10), 3)
}

func TestUnknownTeamFilter(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	green := stats.ApplyFilter(dataset, "Green")
	require.Equal(t, 0, green.Len())
	require.Equal(t, stats.Summary{}, stats.SummaryMetrics(green))
	require.Empty(t, stats.TopByGoals(green, 10))
	require.NotNil(t, stats.TopByGoals(green, 10))
	require.Empty(t, stats.TopByCombinedScore(green, 10))
	require.Empty(t, stats.GoalsByTeam(green))
	require.Empty(t, stats.Teams(green))
}

func TestFilterAllIdentity(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	require.Equal(t, dataset, stats.ApplyFilter(dataset, stats.All))
}

func TestFilterIdempotent(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	for _, team := range []string{"Red", "Blue", "Green", stats.All} {
		once := stats.ApplyFilter(dataset, team)
		twice := stats.ApplyFilter(once, team)
		assert.Equal(t, once.Rows(), twice.Rows(), team)
	}
}

func TestTopNSizeBound(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	for _, tc := range []struct {
		n    int
		want int
	}{
		{n: -1, want: 0},
		{n: 0, want: 0},
		{n: 1, want: 1},
		{n: 3, want: 3},
		{n: 10, want: 3},
	} {
		assert.Len(t, stats.TopByGoals(dataset, tc.n), tc.want, "goals n=%d", tc.n)
		assert.Len(t, stats.TopByCombinedScore(dataset, tc.n), tc.want, "combined n=%d", tc.n)
	}
}

func TestTopByGoalsSortedAndStable(t *testing.T) {
	rows := []stats.PlayerStatRow{
		{Name: "p0", Team: "A", Goals: 2},
		{Name: "p1", Team: "B", Goals: 7},
		{Name: "p2", Team: "A", Goals: 2},
		{Name: "p3", Team: "C", Goals: 0},
		{Name: "p4", Team: "B", Goals: 7},
		{Name: "p5", Team: "C", Goals: 2},
	}
	dataset := mustLoad(t, rows)

	top := stats.TopByGoals(dataset, len(rows))
	require.Equal(t, []string{"p1", "p4", "p0", "p2", "p5", "p3"}, names(top))

	for i := 1; i < len(top); i++ {
		require.GreaterOrEqual(t, top[i-1].Goals, top[i].Goals)
	}
}

func TestTopByCombinedScore(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	// Cy 7, Bo 5, Ana 4
	top := stats.TopByCombinedScore(dataset, 10)
	require.Equal(t, []string{"Cy", "Bo", "Ana"}, names(top))

	tied := mustLoad(t, []stats.PlayerStatRow{
		{Name: "x", Team: "A", Goals: 1, Assists: 3},
		{Name: "y", Team: "A", Goals: 4, Assists: 0},
		{Name: "z", Team: "B", Goals: 2, Assists: 2},
	})
	require.Equal(t, []string{"x", "y", "z"}, names(stats.TopByCombinedScore(tied, 3)))
}

func TestCombinedScoreInvariant(t *testing.T) {
	dataset := mustLoad(t, sampleRows())

	for _, view := range []stats.Dataset{dataset, dataset.Filter("Red"), dataset.Filter("Blue")} {
		for _, row := range view.Rows() {
			require.Equal(t, row.Goals+row.Assists, row.CombinedScore())
		}
	}
}

func TestGoalsByTeamOrderAndConservation(t *testing.T) {
	dataset := mustLoad(t, []stats.PlayerStatRow{
		{Name: "a", Team: "Blue", Goals: 1},
		{Name: "b", Team: "Red", Goals: 4},
		{Name: "c", Team: "Blue", Goals: 2},
		{Name: "d", Team: "Green", Goals: 0},
		{Name: "e", Team: "Red", Goals: 3},
	})

	totals := stats.GoalsByTeam(dataset)
	require.Equal(t, []stats.TeamTotal{
		{Team: "Blue", TotalGoals: 3},
		{Team: "Red", TotalGoals: 7},
		{Team: "Green", TotalGoals: 0},
	}, totals)

	sum := 0
	for _, total := range totals {
		sum += total.TotalGoals
	}
	require.Equal(t, stats.SummaryMetrics(dataset).TotalGoals, sum)
	require.Equal(t, []string{"Blue", "Red", "Green"}, stats.Teams(dataset))
}

func TestNegativeValuesPassThrough(t *testing.T) {
	dataset := mustLoad(t, []stats.PlayerStatRow{
		{Name: "a", Team: "Red", Goals: -2, Assists: 1},
		{Name: "b", Team: "Red", Goals: 1, Assists: -3},
	})

	require.Equal(t, stats.Summary{TotalGoals: -1, TotalAssists: -2, DistinctPlayers: 2}, stats.SummaryMetrics(dataset))
	require.Equal(t, []string{"b", "a"}, names(stats.TopByGoals(dataset, 2)))
	require.Equal(t, []string{"a", "b"}, names(stats.TopByCombinedScore(dataset, 2)))
	require.Equal(t, []stats.TeamTotal{{Team: "Red", TotalGoals: -1}}, stats.GoalsByTeam(dataset))
}

func TestRowJSONIncludesCombinedScore(t *testing.T) {
	body, err := json.Marshal(stats.PlayerStatRow{Name: "Cy", Team: "Red", Goals: 5, Assists: 2})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Cy","team":"Red","goals":5,"assists":2,"combined_score":7}`, string(body))

	var decoded stats.PlayerStatRow
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, stats.PlayerStatRow{Name: "Cy", Team: "Red", Goals: 5, Assists: 2}, decoded)
}
