// Package output renders boards for terminals and files.
package output

import (
	"fmt"
	"sort"

	"opsboard/internal/aggregate"
	"opsboard/internal/board"
	"opsboard/internal/ranked"
)

// Grid is a report flattened to a header and rows of cells. Cells are
// strings, ints or float64s so the xlsx writer keeps numbers numeric.
type Grid struct {
	Caption string
	Header  []string
	Rows    [][]any
}

// Tabulate flattens a report's payload.
func Tabulate(r board.Report) Grid {
	switch d := r.Data.(type) {
	case aggregate.Point:
		g := Grid{Header: []string{"metric", "value"}}
		for _, k := range sortedKeys(d.Metrics) {
			g.Rows = append(g.Rows, []any{k, d.Metrics[k]})
		}
		g.Rows = append(g.Rows,
			[]any{"total", d.Total},
			[]any{"active_days", d.ActiveDays},
			[]any{"average", d.Average},
		)
		return g

	case []aggregate.Point:
		keys := sharedKeys(d)
		g := Grid{Header: append(append([]string{"label"}, keys...), "total", "active_days", "average")}
		for _, p := range d {
			row := []any{p.Label}
			for _, k := range keys {
				row = append(row, p.Metrics[k])
			}
			g.Rows = append(g.Rows, append(row, p.Total, p.ActiveDays, p.Average))
		}
		return g

	case aggregate.MonthSummary:
		return Grid{
			Header: []string{"month", "sum", "active_days", "average"},
			Rows:   [][]any{{d.Label, d.Sum, d.ActiveDays, d.Average}},
		}

	case aggregate.ExpectedVsDone:
		return Grid{
			Header: []string{"month", "expected", "done", "remaining"},
			Rows:   [][]any{{d.Label, d.Expected, d.Done, d.Remaining}},
		}

	case board.TodayRanked:
		extras := extraKeys(len(d.Records), func(i int) map[string]string { return d.Records[i].Extra })
		g := Grid{
			Caption: fmt.Sprintf("%s (date column %d)", d.Date, d.DateCol),
			Header:  append([]string{"#", "id", "category", "location", "time", "status"}, extras...),
		}
		for i, rec := range d.Records {
			row := []any{i + 1, rec.ID, rec.Category, rec.Location, rec.Time, rec.StatusLabel}
			for _, k := range extras {
				row = append(row, rec.Extra[k])
			}
			g.Rows = append(g.Rows, row)
		}
		return g

	case ranked.Queue:
		extras := extraKeys(len(d.Items), func(i int) map[string]string { return d.Items[i].Extra })
		g := Grid{
			Caption: fmt.Sprintf("total %s, done %s (%.0f%%), waiting %d, current %s %s",
				num(d.Total), num(d.Done), d.Rate, d.Waiting, d.CurrentID, d.CurrentCountry),
			Header: append([]string{"id", "country", "status", "sum"}, extras...),
		}
		for _, it := range d.Items {
			row := []any{it.ID, it.Country, it.Status, it.Sum}
			for _, k := range extras {
				row = append(row, it.Extra[k])
			}
			g.Rows = append(g.Rows, row)
		}
		return g

	case nil:
		return Grid{}

	default:
		return Grid{Header: []string{"value"}, Rows: [][]any{{fmt.Sprint(d)}}}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sharedKeys are the metric names every point carries. Per-metric views give
// each row its own single metric, so they end up with no metric columns.
func sharedKeys(points []aggregate.Point) []string {
	if len(points) == 0 {
		return nil
	}
	var out []string
	for _, k := range sortedKeys(points[0].Metrics) {
		shared := true
		for _, p := range points[1:] {
			if _, ok := p.Metrics[k]; !ok {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, k)
		}
	}
	return out
}

func extraKeys(n int, at func(int) map[string]string) []string {
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		for k := range at(i) {
			seen[k] = true
		}
	}
	return sortedKeys(seen)
}
