package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"opsboard/internal/civil"
	"opsboard/internal/csvfeed"
	"opsboard/internal/source"
)

// ErrUnknownFeed is returned for a report naming a feed nobody configured.
var ErrUnknownFeed = errors.New("unknown feed")

// FetchObserver is told about every upstream load, not about memo hits.
type FetchObserver func(feed string, rows int, d time.Duration, err error)

type loaded struct {
	feed csvfeed.Feed
	err  error
}

// Session is one refresh cycle. It pins the clock so every report in the
// cycle agrees on today, and memoizes feeds so each upstream location is
// loaded at most once. Build a new Session per cycle.
type Session struct {
	ID      string
	Started time.Time
	Today   string
	Month   string
	Minute  int
	Year    int

	sources map[string]source.Source
	observe FetchObserver

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]loaded
}

// NewSession reads the calendar once and captures the cycle's sources.
func NewSession(cal civil.Calendar, sources map[string]source.Source, observe FetchObserver) *Session {
	now := cal.Now()
	today := now.Format("2006-01-02")
	return &Session{
		ID:      uuid.NewString(),
		Started: now,
		Today:   today,
		Month:   civil.MonthKey(today),
		Minute:  now.Hour()*60 + now.Minute(),
		Year:    now.Year(),
		sources: sources,
		observe: observe,
		memo:    make(map[string]loaded),
	}
}

// Clock renders the session minute as HH:MM.
func (s *Session) Clock() string {
	return fmt.Sprintf("%02d:%02d", s.Minute/60, s.Minute%60)
}

// Location is the cache identity of feed key, or "" when unknown.
func (s *Session) Location(key string) string {
	if src, ok := s.sources[key]; ok {
		return src.Location()
	}
	return ""
}

// Feed returns the parsed feed for key, loading it on first use. Concurrent
// callers for the same location share one load, and failures are memoized
// too so a dead upstream is not hammered within a cycle.
func (s *Session) Feed(ctx context.Context, key string) (csvfeed.Feed, error) {
	src, ok := s.sources[key]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFeed, key)
	}
	loc := src.Location()

	s.mu.Lock()
	if l, ok := s.memo[loc]; ok {
		s.mu.Unlock()
		return l.feed, l.err
	}
	s.mu.Unlock()

	v, _, _ := s.group.Do(loc, func() (any, error) {
		s.mu.Lock()
		if l, ok := s.memo[loc]; ok {
			s.mu.Unlock()
			return l, nil
		}
		s.mu.Unlock()

		start := time.Now()
		feed, err := src.Load(ctx)
		if s.observe != nil {
			s.observe(key, len(feed), time.Since(start), err)
		}

		l := loaded{feed: feed, err: err}
		s.mu.Lock()
		s.memo[loc] = l
		s.mu.Unlock()
		return l, nil
	})
	l := v.(loaded)
	return l.feed, l.err
}

// Loaded counts the locations fetched so far.
func (s *Session) Loaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memo)
}
