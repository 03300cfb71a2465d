package ranked

import (
	"fmt"
	"sort"

	"opsboard/internal/coerce"
	"opsboard/internal/csvfeed"
)

// DefaultQueueLimit is how many waiting rows the facility board shows.
const DefaultQueueLimit = 15

// QueueSpec locates the facility sheet columns. The status column holds a
// hand-entered work state rather than a schedule time.
type QueueSpec struct {
	IDCol        int
	CountryCol   int
	DateCol      int
	StatusCol    int
	SumCol       int
	Extra        []Column
	DoneLabel    string
	WorkingLabel string
	Limit        int
}

// Validate reports caller mistakes such as negative column indices.
func (s QueueSpec) Validate() error {
	required := []Column{{"id", s.IDCol}, {"date", s.DateCol}, {"status", s.StatusCol}, {"sum", s.SumCol}}
	for _, c := range required {
		if c.Col < 0 {
			return fmt.Errorf("%w: %s column %d", ErrInvalidSpec, c.Name, c.Col)
		}
	}
	if s.DoneLabel == "" || s.WorkingLabel == "" {
		return fmt.Errorf("%w: done and working labels are required", ErrInvalidSpec)
	}
	return nil
}

// QueueItem is one row still waiting or being worked.
type QueueItem struct {
	ID      string            `json:"id"`
	Country string            `json:"country"`
	Status  string            `json:"status"`
	Sum     float64           `json:"sum"`
	Working bool              `json:"working"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Queue is today's facility progress.
type Queue struct {
	Total          float64     `json:"total"`
	Done           float64     `json:"done"`
	Rate           float64     `json:"rate"`
	CurrentID      string      `json:"current_id"`
	CurrentCountry string      `json:"current_country"`
	Waiting        int         `json:"waiting"`
	Items          []QueueItem `json:"items"`
}

// WorkQueue summarizes rows dated target: total and done quantity, the
// completion rate in percent, the first row being worked, and the rows not
// yet done with working rows first. Items is capped at Limit while
// Waiting counts them all.
func WorkQueue(feed csvfeed.Feed, spec QueueSpec, target string, year int) (Queue, error) {
	if err := spec.Validate(); err != nil {
		return Queue{}, err
	}
	if err := checkTarget(target); err != nil {
		return Queue{}, err
	}
	limit := spec.Limit
	if limit <= 0 {
		limit = DefaultQueueLimit
	}

	q := Queue{CurrentID: "-", CurrentCountry: "-", Items: make([]QueueItem, 0)}
	foundCurrent := false
	for _, row := range feed {
		if coerce.ToCanonicalDate(row.Cell(spec.DateCol), year) != target {
			continue
		}
		sum := coerce.ToNumber(row.Cell(spec.SumCol))
		status := coerce.Norm(row.Cell(spec.StatusCol))
		q.Total += sum

		if status == spec.DoneLabel {
			q.Done += sum
			continue
		}

		item := QueueItem{
			ID:      coerce.Norm(row.Cell(spec.IDCol)),
			Country: coerce.Norm(row.Cell(spec.CountryCol)),
			Status:  status,
			Sum:     sum,
			Working: status == spec.WorkingLabel,
		}
		if item.Working && !foundCurrent {
			foundCurrent = true
			q.CurrentID = orDash(item.ID)
			q.CurrentCountry = orDash(item.Country)
		}
		if len(spec.Extra) > 0 {
			item.Extra = make(map[string]string, len(spec.Extra))
			for _, c := range spec.Extra {
				item.Extra[c.Name] = coerce.Norm(row.Cell(c.Col))
			}
		}
		q.Items = append(q.Items, item)
	}

	if q.Total > 0 {
		q.Rate = q.Done / q.Total * 100
	}

	sort.SliceStable(q.Items, func(i, j int) bool {
		return q.Items[i].Working && !q.Items[j].Working
	})
	q.Waiting = len(q.Items)
	if len(q.Items) > limit {
		q.Items = q.Items[:limit]
	}
	return q, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
