package stats

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"
)

// All is the team filter value meaning "no team restriction"
const All = ""

// ErrEmptyDataset is returned by Load when the source produced no rows
var ErrEmptyDataset = errors.New("empty dataset")

// PlayerStatRow is one player's aggregated statistics for a team
type PlayerStatRow struct {
	Name    string `json:"name"`
	Team    string `json:"team"`
	Goals   int    `json:"goals"`
	Assists int    `json:"assists"`
}

// CombinedScore returns goals plus assists (G+A)
func (r PlayerStatRow) CombinedScore() int {
	return r.Goals + r.Assists
}

// MarshalJSON adds the derived combined_score field
func (r PlayerStatRow) MarshalJSON() ([]byte, error) {
	type row PlayerStatRow
	return json.Marshal(struct {
		row
		CombinedScore int `json:"combined_score"`
	}{row(r), r.CombinedScore()})
}

// TeamTotal is the goal sum of every row belonging to one team
type TeamTotal struct {
	Team       string `json:"team"`
	TotalGoals int    `json:"total_goals"`
}

// Summary holds the headline metrics of a dataset
type Summary struct {
	TotalGoals      int `json:"total_goals"`
	TotalAssists    int `json:"total_assists"`
	DistinctPlayers int `json:"distinct_players"`
}

// Dataset is an immutable, ordered snapshot of player rows.
// The zero value is a valid empty dataset.
type Dataset struct {
	rows []PlayerStatRow
}

// Load copies rows into a new Dataset
func Load(rows []PlayerStatRow) (Dataset, error) {
	if len(rows) == 0 {
		return Dataset{}, ErrEmptyDataset
	}

	return Dataset{rows: slices.Clone(rows)}, nil
}

// Len returns the number of rows
func (d Dataset) Len() int {
	return len(d.rows)
}

// Rows returns a copy of the rows in input order
func (d Dataset) Rows() []PlayerStatRow {
	return slices.Clone(d.rows)
}

// Filter is shorthand for ApplyFilter(d, team)
func (d Dataset) Filter(team string) Dataset {
	return ApplyFilter(d, team)
}

// ApplyFilter returns the rows of d whose team equals team, keeping their order.
// All returns d itself. An unknown team yields an empty dataset.
func ApplyFilter(d Dataset, team string) Dataset {
	if team == All {
		return d
	}

	var filtered []PlayerStatRow
	for _, row := range d.rows {
		if row.Team == team {
			filtered = append(filtered, row)
		}
	}

	return Dataset{rows: filtered}
}

// SummaryMetrics sums goals and assists and counts distinct player names.
// A name shared by rows on different teams is counted once.
func SummaryMetrics(d Dataset) Summary {
	var summary Summary
	names := make(map[string]struct{}, len(d.rows))

	for _, row := range d.rows {
		summary.TotalGoals += row.Goals
		summary.TotalAssists += row.Assists
		names[row.Name] = struct{}{}
	}
	summary.DistinctPlayers = len(names)

	return summary
}

// TopByGoals returns up to n rows ordered by goals descending.
// Rows with equal goals keep their input order.
func TopByGoals(d Dataset, n int) []PlayerStatRow {
	return topBy(d, n, func(r PlayerStatRow) int { return r.Goals })
}

// TopByCombinedScore returns up to n rows ordered by goals plus assists descending,
// breaking ties by input order.
func TopByCombinedScore(d Dataset, n int) []PlayerStatRow {
	return topBy(d, n, PlayerStatRow.CombinedScore)
}

func topBy(d Dataset, n int, key func(PlayerStatRow) int) []PlayerStatRow {
	if n <= 0 || len(d.rows) == 0 {
		return []PlayerStatRow{}
	}

	ranked := slices.Clone(d.rows)
	slices.SortStableFunc(ranked, func(a, b PlayerStatRow) int {
		return cmp.Compare(key(b), key(a))
	})

	if n < len(ranked) {
		ranked = ranked[:n]
	}

	return ranked
}

// GoalsByTeam sums goals per team. Teams appear in the order they are first seen.
func GoalsByTeam(d Dataset) []TeamTotal {
	totals := []TeamTotal{}
	index := make(map[string]int)

	for _, row := range d.rows {
		i, ok := index[row.Team]
		if !ok {
			i = len(totals)
			index[row.Team] = i
			totals = append(totals, TeamTotal{Team: row.Team})
		}
		totals[i].TotalGoals += row.Goals
	}

	return totals
}

// Teams lists the distinct teams of d in first-appearance order
func Teams(d Dataset) []string {
	teams := []string{}
	seen := make(map[string]struct{})

	for _, row := range d.rows {
		if _, ok := seen[row.Team]; ok {
			continue
		}
		seen[row.Team] = struct{}{}
		teams = append(teams, row.Team)
	}

	return teams
}
