package aggregate

import (
	"strconv"
	"strings"

	"opsboard/internal/civil"
	"opsboard/internal/csvfeed"
)

// Point is one presentation row of a view.
type Point struct {
	Label      string             `json:"label"`
	Metrics    map[string]float64 `json:"metrics"`
	Total      float64            `json:"total"`
	ActiveDays int                `json:"active_days"`
	Average    float64            `json:"average"`
}

func (r *Result) point(label string, b *Bucket) Point {
	metrics := make(map[string]float64, len(r.Metrics))
	for _, name := range r.Metrics {
		metrics[name] = b.Sums[name]
	}
	return Point{
		Label:      label,
		Metrics:    metrics,
		Total:      b.Total(),
		ActiveDays: b.ActiveDays(),
		Average:    b.AverageTotal(),
	}
}

// Overall merges every bucket into one.
func (r *Result) Overall() *Bucket {
	all := newBucket("", r.Metrics)
	for _, b := range r.Buckets {
		all.merge(b)
	}
	return all
}

// Totals is the grand total across all buckets.
func (r *Result) Totals() Point {
	return r.point("total", r.Overall())
}

// Monthly12 folds buckets into month-of-year slots 1..12. When any bucket
// falls in year only that year is counted; otherwise all years are.
func (r *Result) Monthly12(year int) []Point {
	prefix := strconv.Itoa(year) + "-"
	hasYear := false
	for key := range r.Buckets {
		if strings.HasPrefix(key, prefix) {
			hasYear = true
			break
		}
	}

	slots := make([]*Bucket, 13)
	for m := 1; m <= 12; m++ {
		slots[m] = newBucket(civil.MonthLabel(m), r.Metrics)
	}
	for key, b := range r.Buckets {
		if hasYear && !strings.HasPrefix(key, prefix) {
			continue
		}
		m := civil.MonthNumber(civil.MonthKey(key))
		if m < 1 || m > 12 {
			continue
		}
		slots[m].merge(b)
	}

	out := make([]Point, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, r.point(civil.MonthLabel(m), slots[m]))
	}
	return out
}

// Rolling returns n consecutive days from start, zero-filled. It expects a
// Daily result.
func (r *Result) Rolling(start string, n int) []Point {
	days := civil.Days(start, n)
	out := make([]Point, 0, len(days))
	for _, d := range days {
		out = append(out, r.point(d, r.Bucket(d)))
	}
	return out
}

// MonthSummary is one month's sum, active day count and rounded average.
type MonthSummary struct {
	Month      string  `json:"month"`
	Label      string  `json:"label"`
	Sum        float64 `json:"sum"`
	ActiveDays int     `json:"active_days"`
	Average    float64 `json:"average"`
}

// Month summarizes the bucket for ym from a Monthly result.
func (r *Result) Month(ym string) MonthSummary {
	b := r.Bucket(ym)
	return MonthSummary{
		Month:      ym,
		Label:      civil.MonthLabel(civil.MonthNumber(ym)),
		Sum:        b.Total(),
		ActiveDays: b.ActiveDays(),
		Average:    Round(b.AverageTotal()),
	}
}

// PerMetric lists each metric's all-time sum and per-active-day average over
// the shared active dates, followed by an overall row.
func (r *Result) PerMetric() []Point {
	all := r.Overall()
	days := all.ActiveDays()
	out := make([]Point, 0, len(r.Metrics)+1)
	for _, name := range r.Metrics {
		sum := all.Sums[name]
		out = append(out, Point{
			Label:      name,
			Metrics:    map[string]float64{name: sum},
			Total:      sum,
			ActiveDays: days,
			Average:    Round(perDay(sum, days)),
		})
	}
	overall := r.point("total", all)
	overall.Average = Round(overall.Average)
	return append(out, overall)
}

// GetTotals aggregates feed and returns the grand total.
func GetTotals(feed csvfeed.Feed, spec Spec, currentYear int) (Point, error) {
	res, err := Aggregate(feed, spec, Daily, currentYear)
	if err != nil {
		return Point{}, err
	}
	return res.Totals(), nil
}

// GetMonthly12 returns exactly twelve month slots.
func GetMonthly12(feed csvfeed.Feed, spec Spec, currentYear int) ([]Point, error) {
	res, err := Aggregate(feed, spec, Monthly, currentYear)
	if err != nil {
		return nil, err
	}
	return res.Monthly12(currentYear), nil
}

// GetRolling7Days returns start and the six days after it.
func GetRolling7Days(feed csvfeed.Feed, spec Spec, start string) ([]Point, error) {
	res, err := Aggregate(feed, spec, Daily, yearOf(start))
	if err != nil {
		return nil, err
	}
	return res.Rolling(start, 7), nil
}

// GetMonthSummary summarizes month ym. Only positive cells count.
func GetMonthSummary(feed csvfeed.Feed, spec Spec, ym string, currentYear int) (MonthSummary, error) {
	spec.PositiveOnly = true
	res, err := Aggregate(feed, spec, Monthly, currentYear)
	if err != nil {
		return MonthSummary{}, err
	}
	return res.Month(ym), nil
}

// GetPerMetric returns the workplace-style per metric totals.
func GetPerMetric(feed csvfeed.Feed, spec Spec, currentYear int) ([]Point, error) {
	res, err := Aggregate(feed, spec, Daily, currentYear)
	if err != nil {
		return nil, err
	}
	return res.PerMetric(), nil
}

// ExpectedVsDone compares planned volume with completed volume for a month.
type ExpectedVsDone struct {
	Month     string  `json:"month"`
	Label     string  `json:"label"`
	Expected  float64 `json:"expected"`
	Done      float64 `json:"done"`
	Remaining float64 `json:"remaining"`
}

// GetMonthlyExpectedVsDone sums expected from one feed and done from another
// for month ym. Remaining may go negative when more was done than planned.
func GetMonthlyExpectedVsDone(expected csvfeed.Feed, expectedSpec Spec, done csvfeed.Feed, doneSpec Spec, ym string, currentYear int) (ExpectedVsDone, error) {
	exp, err := Aggregate(expected, expectedSpec, Monthly, currentYear)
	if err != nil {
		return ExpectedVsDone{}, err
	}
	dn, err := Aggregate(done, doneSpec, Monthly, currentYear)
	if err != nil {
		return ExpectedVsDone{}, err
	}
	e := exp.Bucket(ym).Total()
	d := dn.Bucket(ym).Total()
	return ExpectedVsDone{
		Month:     ym,
		Label:     civil.MonthLabel(civil.MonthNumber(ym)),
		Expected:  e,
		Done:      d,
		Remaining: e - d,
	}, nil
}

func yearOf(ymd string) int {
	if len(ymd) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(ymd[:4])
	return y
}
