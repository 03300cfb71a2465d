// Package board computes every configured report for one refresh cycle and
// assembles them into the board the API and CLI present.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"opsboard/internal/aggregate"
	"opsboard/internal/civil"
	"opsboard/internal/config"
	"opsboard/internal/csvfeed"
	"opsboard/internal/logger"
	"opsboard/internal/metrics"
	"opsboard/internal/ranked"
	"opsboard/internal/timestatus"
)

// defaultDetectSample is how many leading rows date detection looks at.
const defaultDetectSample = 100

// Report is one computed panel. Stale reports carry the last good data and
// the error that prevented a fresh computation.
type Report struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind"`
	Stale      bool      `json:"stale"`
	Error      string    `json:"error,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
	CycleID    string    `json:"cycle_id"`
	Skipped    int       `json:"skipped_rows"`
	Data       any       `json:"data"`
}

// OK reports whether the report has data to show.
func (r Report) OK() bool { return r.Data != nil }

// Board is a complete, consistent set of reports from one cycle.
type Board struct {
	CycleID     string    `json:"cycle_id"`
	Today       string    `json:"today"`
	Now         string    `json:"now"`
	GeneratedAt time.Time `json:"generated_at"`
	Duration    string    `json:"duration"`
	Partial     bool      `json:"partial"`
	Reports     []Report  `json:"reports"`
}

// Report finds a report by name.
func (b *Board) Report(name string) (Report, bool) {
	if b == nil {
		return Report{}, false
	}
	for _, r := range b.Reports {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

// LastGood remembers the most recent successful report per key.
type LastGood interface {
	Get(key string) (Report, bool)
	Put(key string, r Report)
}

// Computer turns report definitions into reports.
type Computer struct {
	Policy      timestatus.Policy
	Ranker      timestatus.Ranker
	Labels      timestatus.Labels
	HeaderWords []string
	LastGood    LastGood
	Metrics     *metrics.Metrics
	Log         logger.Logger
	// Parallel bounds concurrent report computations; 0 means unbounded.
	Parallel int
}

// NewComputer takes status and header settings from cfg.
func NewComputer(cfg *config.Config, lastGood LastGood, m *metrics.Metrics, log logger.Logger) *Computer {
	return &Computer{
		Policy:      cfg.Policy(),
		Ranker:      cfg.Ranker(),
		Labels:      cfg.Labels(),
		HeaderWords: cfg.HeaderWords,
		LastGood:    lastGood,
		Metrics:     m,
		Log:         log,
	}
}

// Compute builds every report against s. Nothing is published here; the
// caller gets the whole board at once. Reports whose feeds failed fall back
// to their last good result, marked stale.
func (c *Computer) Compute(ctx context.Context, s *Session, reports []config.ReportConfig) *Board {
	log := c.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("cycle_id", s.ID))

	out := make([]Report, len(reports))
	var g errgroup.Group
	if c.Parallel > 0 {
		g.SetLimit(c.Parallel)
	}
	for i, rc := range reports {
		g.Go(func() error {
			out[i] = c.report(ctx, s, rc, log)
			return nil
		})
	}
	_ = g.Wait()

	b := &Board{
		CycleID:     s.ID,
		Today:       s.Today,
		Now:         s.Clock(),
		GeneratedAt: s.Started,
		Duration:    time.Since(s.Started).Round(time.Millisecond).String(),
		Reports:     out,
	}
	for _, r := range out {
		if r.Stale || r.Error != "" {
			b.Partial = true
		}
	}
	return b
}

func (c *Computer) cacheKey(s *Session, rc config.ReportConfig) string {
	locs := make([]string, 0, 2)
	for _, key := range rc.FeedKeys() {
		locs = append(locs, s.Location(key))
	}
	return rc.Name + "|" + strings.Join(locs, "|")
}

func (c *Computer) report(ctx context.Context, s *Session, rc config.ReportConfig, log logger.Logger) Report {
	r := Report{
		Name:       rc.Name,
		Title:      rc.Title,
		Kind:       rc.Kind,
		ComputedAt: s.Started,
		CycleID:    s.ID,
	}

	data, skipped, err := c.compute(ctx, s, rc)
	key := c.cacheKey(s, rc)
	if err == nil {
		r.Data = data
		r.Skipped = skipped
		c.Metrics.SetSkipped(rc.Name, skipped)
		if skipped > 0 {
			log.Debug("Rows skipped", logger.String("report", rc.Name), logger.Int("skipped", skipped))
		}
		if c.LastGood != nil {
			c.LastGood.Put(key, r)
		}
		return r
	}

	if c.LastGood != nil {
		if prev, ok := c.LastGood.Get(key); ok {
			prev.Stale = true
			prev.Error = err.Error()
			prev.Title = rc.Title
			c.Metrics.RecordFallback(rc.Name)
			log.Warn("Serving last good report",
				logger.String("report", rc.Name),
				logger.String("from_cycle", prev.CycleID),
				logger.Error(err),
			)
			return prev
		}
	}

	c.Metrics.RecordFailure(rc.Name)
	log.Error("Report unavailable", logger.String("report", rc.Name), logger.Error(err))
	r.Error = err.Error()
	return r
}

func (c *Computer) compute(ctx context.Context, s *Session, rc config.ReportConfig) (any, int, error) {
	feed, err := s.Feed(ctx, rc.Feed)
	if err != nil {
		return nil, 0, err
	}
	month := civil.ShiftMonth(s.Month, rc.MonthOffset)
	day := civil.AddDays(s.Today, rc.DayOffset)

	switch rc.Kind {
	case config.KindTodayRanked:
		return c.todayRanked(feed, s, rc, day)

	case config.KindWorkQueue:
		q, err := ranked.WorkQueue(feed, rc.QueueSpec(), day, s.Year)
		return q, 0, err

	case config.KindExpectedVsDone:
		done, err := s.Feed(ctx, rc.DoneFeed())
		if err != nil {
			return nil, 0, err
		}
		v, err := aggregate.GetMonthlyExpectedVsDone(feed, rc.AggregateSpec(c.HeaderWords), done, rc.DoneSpec(c.HeaderWords), month, s.Year)
		return v, 0, err
	}

	mode := aggregate.Daily
	if rc.Kind == config.KindMonthly12 || rc.Kind == config.KindMonthSummary {
		mode = aggregate.Monthly
	}
	res, err := aggregate.Aggregate(feed, rc.AggregateSpec(c.HeaderWords), mode, s.Year)
	if err != nil {
		return nil, 0, err
	}

	switch rc.Kind {
	case config.KindTotals:
		return res.Totals(), res.Skipped, nil
	case config.KindMonthly12:
		return res.Monthly12(s.Year), res.Skipped, nil
	case config.KindRolling7:
		return res.Rolling(day, 7), res.Skipped, nil
	case config.KindMonthSummary:
		return res.Month(month), res.Skipped, nil
	case config.KindPerMetric:
		return res.PerMetric(), res.Skipped, nil
	default:
		return nil, 0, fmt.Errorf("report %s: unknown kind %q", rc.Name, rc.Kind)
	}
}

// TodayRanked is the payload of a today_ranked report.
type TodayRanked struct {
	Date    string          `json:"date"`
	DateCol int             `json:"date_col"`
	Records []ranked.Record `json:"records"`
}

func (c *Computer) todayRanked(feed csvfeed.Feed, s *Session, rc config.ReportConfig, day string) (any, int, error) {
	spec := rc.RankedSpec()
	if rc.Ranked != nil && len(rc.Ranked.DetectCandidates) > 0 {
		n := rc.Ranked.DetectSample
		if n <= 0 {
			n = defaultDetectSample
		}
		spec.DateCol = ranked.DetectDateColumn(feed.Head(n), rc.Ranked.DetectCandidates, spec.DateCol, day, s.Year)
	}
	recs, err := ranked.Today(feed, spec, ranked.Options{
		Target: day,
		Now:    s.Minute,
		Year:   s.Year,
		Policy: c.Policy,
		Ranker: c.Ranker,
		Labels: c.Labels,
	})
	if err != nil {
		return nil, 0, err
	}
	return TodayRanked{Date: day, DateCol: spec.DateCol, Records: recs}, 0, nil
}
