// Package ranked selects today's rows from a feed and orders them for the
// loading board: by container class first, then by scheduled time.
package ranked

import (
	"errors"
	"fmt"
	"sort"

	"opsboard/internal/coerce"
	"opsboard/internal/csvfeed"
	"opsboard/internal/timestatus"
)

// ErrInvalidSpec marks a caller mistake such as a negative column index.
var ErrInvalidSpec = errors.New("invalid ranked spec")

var (
	// DefaultHeaderMarkers are substrings of a header-row identifier cell.
	DefaultHeaderMarkers = []string{"인보", "invoice"}
	// DefaultHeaderExact are whole identifier cells that mark a header row,
	// such as a column letter row.
	DefaultHeaderExact = []string{"A"}
)

// Column is a named extra display column.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Col  int    `yaml:"col" json:"col"`
}

// Spec locates the display columns.
type Spec struct {
	IDCol       int
	DateCol     int
	CategoryCol int
	LocationCol int
	TimeCol     int
	Extra       []Column

	HeaderMarkers []string
	HeaderExact   []string
}

// Validate reports caller mistakes. Category and location
// columns may be -1 when a feed has none.
func (s Spec) Validate() error {
	required := []Column{{"id", s.IDCol}, {"date", s.DateCol}, {"time", s.TimeCol}}
	for _, c := range required {
		if c.Col < 0 {
			return fmt.Errorf("%w: %s column %d", ErrInvalidSpec, c.Name, c.Col)
		}
	}
	for _, c := range s.Extra {
		if c.Col < 0 || c.Name == "" {
			return fmt.Errorf("%w: extra column %q at %d", ErrInvalidSpec, c.Name, c.Col)
		}
	}
	return nil
}

func (s Spec) isHeaderID(id string) bool {
	markers := s.HeaderMarkers
	if markers == nil {
		markers = DefaultHeaderMarkers
	}
	exact := s.HeaderExact
	if exact == nil {
		exact = DefaultHeaderExact
	}
	for _, e := range exact {
		if id == e {
			return true
		}
	}
	return coerce.ContainsAny(id, markers)
}

// Options carries the moment the board is computed for.
type Options struct {
	Target string
	Now    int
	Year   int
	Policy timestatus.Policy
	Ranker timestatus.Ranker
	Labels timestatus.Labels
}

// Record is one ranked row ready for display.
type Record struct {
	ID           string            `json:"id"`
	Category     string            `json:"category"`
	Location     string            `json:"location"`
	Time         string            `json:"time"`
	Extra        map[string]string `json:"extra,omitempty"`
	Status       timestatus.Status `json:"status"`
	StatusLabel  string            `json:"status_label"`
	CategoryRank int               `json:"category_rank"`
	Minute       int               `json:"minute"`
}

// Today keeps rows dated opts.Target with a real identifier, derives their
// status and sorts them by (category rank, minute). Unknown times carry
// timestatus.Unknown and so sort last within their category. An empty
// result means nothing is scheduled.
func Today(feed csvfeed.Feed, spec Spec, opts Options) ([]Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := checkTarget(opts.Target); err != nil {
		return nil, err
	}

	out := make([]Record, 0)
	for _, row := range feed {
		id := coerce.Norm(row.Cell(spec.IDCol))
		if id == "" || spec.isHeaderID(id) {
			continue
		}
		if coerce.ToCanonicalDate(row.Cell(spec.DateCol), opts.Year) != opts.Target {
			continue
		}

		category := coerce.Norm(row.Cell(spec.CategoryCol))
		timeCell := coerce.Norm(row.Cell(spec.TimeCol))
		minute := timestatus.ParseTimeOfDay(timeCell)
		status := opts.Policy.DeriveMinute(minute, opts.Now)

		rec := Record{
			ID:           id,
			Category:     category,
			Location:     coerce.Norm(row.Cell(spec.LocationCol)),
			Time:         timeCell,
			Status:       status,
			StatusLabel:  opts.Labels.Label(status),
			CategoryRank: opts.Ranker.Rank(category),
			Minute:       minute,
		}
		if len(spec.Extra) > 0 {
			rec.Extra = make(map[string]string, len(spec.Extra))
			for _, c := range spec.Extra {
				rec.Extra[c.Name] = coerce.Norm(row.Cell(c.Col))
			}
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CategoryRank != out[j].CategoryRank {
			return out[i].CategoryRank < out[j].CategoryRank
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

// DetectDateColumn guesses which candidate column holds the date by counting
// how many sample rows are dated target. The best strictly-higher count wins;
// with no hits, or when defaultCol ties the best, defaultCol is kept. This is
// a best-effort fallback for feeds whose layout drifts.
func DetectDateColumn(sample csvfeed.Feed, candidates []int, defaultCol int, target string, year int) int {
	hits := func(col int) int {
		n := 0
		for _, row := range sample {
			if coerce.ToCanonicalDate(row.Cell(col), year) == target {
				n++
			}
		}
		return n
	}

	best, bestHits := defaultCol, hits(defaultCol)
	for _, col := range candidates {
		if col < 0 || col == defaultCol {
			continue
		}
		if h := hits(col); h > bestHits {
			best, bestHits = col, h
		}
	}
	if bestHits == 0 {
		return defaultCol
	}
	return best
}

// checkTarget rejects a target that no coerced cell could ever equal.
func checkTarget(target string) error {
	if !coerce.IsCanonicalDate(target) {
		return fmt.Errorf("%w: target date %q is not YYYY-MM-DD", ErrInvalidSpec, target)
	}
	return nil
}
