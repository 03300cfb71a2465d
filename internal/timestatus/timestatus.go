// Package timestatus parses free-form schedule times and derives a live
// loading status by comparing them with the current minute of the day.
package timestatus

import (
	"regexp"
	"strconv"
	"strings"
)

// Unknown is the minute offset for an unparseable time. It is larger than
// any valid offset so unknown times sort last.
const Unknown = 9999

const minutesPerDay = 24 * 60

var (
	hourSep  = regexp.MustCompile(`(\d{1,2})\s*[:시]\s*(\d{1,2})?`)
	compact  = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	bareHour = regexp.MustCompile(`^(\d{1,2})$`)
)

// ParseTimeOfDay reads "07시", "07:30", "7시 30분", "0730" or "7" into
// minutes since midnight. It returns Unknown for blanks, placeholders and
// out-of-range values.
func ParseTimeOfDay(cell string) int {
	s := strings.TrimSpace(strings.ReplaceAll(cell, "\r", ""))
	if s == "" {
		return Unknown
	}

	if m := hourSep.FindStringSubmatch(s); m != nil {
		return offset(m[1], m[2])
	}
	if m := compact.FindStringSubmatch(s); m != nil {
		return offset(m[1], m[2])
	}
	if m := bareHour.FindStringSubmatch(s); m != nil {
		return offset(m[1], "")
	}
	return Unknown
}

func offset(hh, mm string) int {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return Unknown
	}
	m := 0
	if mm != "" {
		if m, err = strconv.Atoi(mm); err != nil {
			return Unknown
		}
	}
	if h > 23 || m > 59 {
		return Unknown
	}
	return h*60 + m
}

// Status is the derived loading state of a scheduled row.
type Status string

const (
	Waiting    Status = "waiting"
	InProgress Status = "in_progress"
	Done       Status = "done"
	StatusNone Status = "unknown"
)

// Policy controls how long after the scheduled minute a row counts as in
// progress, and whether the last minute of the window is still inside it.
type Policy struct {
	WindowMinutes int
	InclusiveEnd  bool
}

// DefaultPolicy is a two hour window, end exclusive.
func DefaultPolicy() Policy {
	return Policy{WindowMinutes: 120}
}

// Derive compares the scheduled cell with now (minutes since midnight).
func (p Policy) Derive(timeCell string, now int) Status {
	return p.DeriveMinute(ParseTimeOfDay(timeCell), now)
}

// DeriveMinute is Derive for an already parsed offset.
func (p Policy) DeriveMinute(scheduled, now int) Status {
	if scheduled < 0 || scheduled >= minutesPerDay {
		return StatusNone
	}
	if now < scheduled {
		return Waiting
	}
	end := scheduled + p.WindowMinutes
	if now < end || (p.InclusiveEnd && now == end) {
		return InProgress
	}
	return Done
}

// Labels maps each status to the text shown on the board.
type Labels map[Status]string

// DefaultLabels are the loading-dock labels used on site.
func DefaultLabels() Labels {
	return Labels{
		Waiting:    "상차대기",
		InProgress: "상차중",
		Done:       "상차완료",
		StatusNone: "-",
	}
}

// Label returns the display text for s, falling back to the status code.
func (l Labels) Label(s Status) string {
	if v, ok := l[s]; ok && v != "" {
		return v
	}
	if v, ok := DefaultLabels()[s]; ok {
		return v
	}
	return string(s)
}
