// Package civil answers "what day is it, and what minute of the day" in the
// one fixed timezone every dashboard comparison is made in.
package civil

import (
	"fmt"
	"strconv"
	"time"
	_ "time/tzdata" // Asia/Seoul must resolve on minimal container images
)

// DefaultZone is the site timezone.
const DefaultZone = "Asia/Seoul"

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
	kstOffset   = 9 * 60 * 60
)

// Clock supplies the current instant. Tests pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// LoadZone resolves name, falling back to a fixed UTC+9 zone when the name is
// empty or unknown.
func LoadZone(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("KST", kstOffset)
	}
	return loc
}

// Calendar converts instants into civil dates and minute offsets in Loc.
type Calendar struct {
	Loc   *time.Location
	Clock Clock
}

// NewCalendar builds a Calendar on the system clock.
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{Loc: loc, Clock: SystemClock{}}
}

// Now is the current instant in the calendar's zone.
func (c Calendar) Now() time.Time {
	clock := c.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	loc := c.Loc
	if loc == nil {
		loc = LoadZone("")
	}
	return clock.Now().In(loc)
}

// Today returns today's canonical date, shifted by offsetDays.
func (c Calendar) Today(offsetDays int) string {
	return c.Now().AddDate(0, 0, offsetDays).Format(dateLayout)
}

// Year is the current civil year.
func (c Calendar) Year() int {
	return c.Now().Year()
}

// MinuteOfDay is minutes since local midnight, in [0, 1439].
func (c Calendar) MinuteOfDay() int {
	now := c.Now()
	return now.Hour()*60 + now.Minute()
}

// AddDays shifts a canonical date. Unparseable input is returned unchanged.
func AddDays(ymd string, days int) string {
	t, err := time.Parse(dateLayout, ymd)
	if err != nil {
		return ymd
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}

// Days lists n consecutive canonical dates starting at start.
func Days(start string, n int) []string {
	out := make([]string, 0, n)
	for i := range n {
		out = append(out, AddDays(start, i))
	}
	return out
}

// MonthKey returns the YYYY-MM prefix of a canonical date.
func MonthKey(ymd string) string {
	if len(ymd) < 7 {
		return ""
	}
	return ymd[:7]
}

// ShiftMonth moves a YYYY-MM key by diff months.
func ShiftMonth(ym string, diff int) string {
	t, err := time.Parse(monthLayout, ym)
	if err != nil {
		return ym
	}
	return t.AddDate(0, diff, 0).Format(monthLayout)
}

// MonthNumber extracts the month of a YYYY-MM key, or 0.
func MonthNumber(ym string) int {
	if len(ym) < 7 {
		return 0
	}
	n, err := strconv.Atoi(ym[5:7])
	if err != nil {
		return 0
	}
	return n
}

// MonthLabel renders a month number as the board shows it ("3월").
func MonthLabel(month int) string {
	return fmt.Sprintf("%d월", month)
}
