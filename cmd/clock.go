package cmd

import (
	"fmt"
	"strings"
	"time"

	"opsboard/internal/civil"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
}

// calendarFor builds the report calendar. An --as-of date or --now time pins
// the clock; unset parts come from the current time.
func calendarFor(tz, asOf, now string) (civil.Calendar, error) {
	cal := civil.NewCalendar(civil.LoadZone(tz))
	if asOf == "" && now == "" {
		return cal, nil
	}

	t := cal.Now()
	if asOf != "" {
		d, err := parseDate(asOf, cal.Loc)
		if err != nil {
			return cal, err
		}
		t = time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, cal.Loc)
	}
	if now != "" {
		hm, err := time.Parse("15:04", strings.TrimSpace(now))
		if err != nil {
			return cal, fmt.Errorf("invalid --now value %q: want HH:MM", now)
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), hm.Hour(), hm.Minute(), 0, 0, cal.Loc)
	}
	cal.Clock = civil.FixedClock{T: t}
	return cal, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}
