// Package aggregate sums metric columns of a feed into date or month buckets
// and derives the board's totals, monthly, rolling and average views.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"opsboard/internal/civil"
	"opsboard/internal/coerce"
	"opsboard/internal/csvfeed"
)

// ErrInvalidSpec marks a caller mistake such as a negative column index.
var ErrInvalidSpec = errors.New("invalid aggregation spec")

// DefaultHeaderWords identify header rows by their date cell.
var DefaultHeaderWords = []string{"날짜", "date"}

// Metric names a numeric column.
type Metric struct {
	Name string `yaml:"name" json:"name"`
	Col  int    `yaml:"col" json:"col"`
}

// Condition keeps only rows whose cell at Col equals Equals after trimming.
type Condition struct {
	Col    int    `yaml:"col" json:"col"`
	Equals string `yaml:"equals" json:"equals"`
}

// Spec describes which columns to read. PositiveOnly drops zero and
// negative cells, so corrections never reduce a sum or mark a day active.
type Spec struct {
	DateCol      int
	Metrics      []Metric
	Where        []Condition
	HeaderWords  []string
	PositiveOnly bool
}

// Validate reports caller mistakes such as negative column indices.
func (s Spec) Validate() error {
	if s.DateCol < 0 {
		return fmt.Errorf("%w: date column %d", ErrInvalidSpec, s.DateCol)
	}
	if len(s.Metrics) == 0 {
		return fmt.Errorf("%w: no metrics", ErrInvalidSpec)
	}
	seen := make(map[string]bool, len(s.Metrics))
	for _, m := range s.Metrics {
		if m.Name == "" {
			return fmt.Errorf("%w: metric without name", ErrInvalidSpec)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate metric %q", ErrInvalidSpec, m.Name)
		}
		seen[m.Name] = true
		if m.Col < 0 {
			return fmt.Errorf("%w: metric %q column %d", ErrInvalidSpec, m.Name, m.Col)
		}
	}
	for _, c := range s.Where {
		if c.Col < 0 {
			return fmt.Errorf("%w: condition column %d", ErrInvalidSpec, c.Col)
		}
	}
	return nil
}

// MetricNames returns metric names in spec order.
func (s Spec) MetricNames() []string {
	names := make([]string, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		names = append(names, m.Name)
	}
	return names
}

func (s Spec) headerWords() []string {
	if s.HeaderWords == nil {
		return DefaultHeaderWords
	}
	return s.HeaderWords
}

func (s Spec) matches(row csvfeed.Row) bool {
	for _, c := range s.Where {
		if coerce.Norm(row.Cell(c.Col)) != coerce.Norm(c.Equals) {
			return false
		}
	}
	return true
}

// Mode selects the bucket key.
type Mode int

const (
	// Daily buckets by YYYY-MM-DD.
	Daily Mode = iota
	// Monthly buckets by YYYY-MM.
	Monthly
)

// Bucket accumulates metric sums and the dates on which anything was nonzero.
type Bucket struct {
	Key         string
	Sums        map[string]float64
	ActiveDates map[string]struct{}

	order []string
}

func newBucket(key string, order []string) *Bucket {
	return &Bucket{
		Key:         key,
		Sums:        make(map[string]float64),
		ActiveDates: make(map[string]struct{}),
		order:       order,
	}
}

// Total is the sum over every metric, added in metric order so the same
// data always yields the same float.
func (b *Bucket) Total() float64 {
	order := b.order
	if order == nil {
		order = make([]string, 0, len(b.Sums))
		for k := range b.Sums {
			order = append(order, k)
		}
		sort.Strings(order)
	}
	var t float64
	for _, name := range order {
		t += b.Sums[name]
	}
	return t
}

// ActiveDays is the number of distinct active dates.
func (b *Bucket) ActiveDays() int {
	return len(b.ActiveDates)
}

// Average divides a metric's sum by the active day count, or 0 when there
// were no active days.
func (b *Bucket) Average(metric string) float64 {
	return perDay(b.Sums[metric], len(b.ActiveDates))
}

// AverageTotal is Average over the bucket total.
func (b *Bucket) AverageTotal() float64 {
	return perDay(b.Total(), len(b.ActiveDates))
}

func (b *Bucket) merge(other *Bucket) {
	for k, v := range other.Sums {
		b.Sums[k] += v
	}
	for d := range other.ActiveDates {
		b.ActiveDates[d] = struct{}{}
	}
}

func perDay(sum float64, days int) float64 {
	if days == 0 {
		return 0
	}
	return sum / float64(days)
}

// Result is the finalized output of one scan.
type Result struct {
	Mode    Mode
	Metrics []string
	Buckets map[string]*Bucket
	Rows    int
	Skipped int
}

// Keys returns bucket keys in ascending order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Buckets))
	for k := range r.Buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bucket returns the bucket for key, or an empty one.
func (r *Result) Bucket(key string) *Bucket {
	if b, ok := r.Buckets[key]; ok {
		return b
	}
	return newBucket(key, r.Metrics)
}

// Aggregate scans feed once. Rows whose date does not coerce, rows whose
// date cell holds a header word and rows failing a Where condition are
// skipped; bad metric cells count 0. currentYear places bare M/D dates.
func Aggregate(feed csvfeed.Feed, spec Spec, mode Mode, currentYear int) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Mode:    mode,
		Metrics: spec.MetricNames(),
		Buckets: make(map[string]*Bucket),
	}
	words := spec.headerWords()

	for _, row := range feed {
		res.Rows++
		raw := row.Cell(spec.DateCol)
		date := coerce.ToCanonicalDate(raw, currentYear)
		if !coerce.IsCanonicalDate(date) || coerce.ContainsWord(raw, words) || !spec.matches(row) {
			res.Skipped++
			continue
		}

		key := date
		if mode == Monthly {
			key = civil.MonthKey(date)
		}
		b, ok := res.Buckets[key]
		if !ok {
			b = newBucket(key, res.Metrics)
			res.Buckets[key] = b
		}

		active := false
		for _, m := range spec.Metrics {
			v := coerce.ToNumber(row.Cell(m.Col))
			if spec.PositiveOnly && v <= 0 {
				continue
			}
			b.Sums[m.Name] += v
			if v != 0 {
				active = true
			}
		}
		if active {
			b.ActiveDates[date] = struct{}{}
		}
	}
	return res, nil
}

// Round rounds half away from zero.
func Round(v float64) float64 {
	return math.Round(v)
}
