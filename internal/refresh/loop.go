// Package refresh runs refresh cycles and publishes the resulting boards.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"opsboard/internal/board"
	"opsboard/internal/civil"
	"opsboard/internal/config"
	"opsboard/internal/logger"
	"opsboard/internal/metrics"
	"opsboard/internal/source"
)

// ErrBusy is returned when a cycle is requested while another is running.
var ErrBusy = errors.New("refresh already in progress")

// Resolver turns feed configuration into the sources of one cycle.
type Resolver interface {
	Resolve(ctx context.Context, feeds map[string]config.FeedConfig) map[string]source.Source
}

// Loop owns the published board. Readers always see a complete board from a
// single cycle; a cycle swaps in its board only once every report is done.
type Loop struct {
	cfg      *config.Config
	resolver Resolver
	computer *board.Computer
	cal      civil.Calendar
	metrics  *metrics.Metrics
	log      logger.Logger

	running sync.Mutex
	current atomic.Pointer[board.Board]
}

// NewLoop wires a Loop. A nil log discards output.
func NewLoop(
	cfg *config.Config,
	resolver Resolver,
	computer *board.Computer,
	cal civil.Calendar,
	m *metrics.Metrics,
	log logger.Logger,
) *Loop {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loop{
		cfg:      cfg,
		resolver: resolver,
		computer: computer,
		cal:      cal,
		metrics:  m,
		log:      log,
	}
}

// Current is the last published board, or nil before the first cycle.
func (l *Loop) Current() *board.Board {
	return l.current.Load()
}

// RunOnce runs one cycle and publishes its board. Overlapping calls do not
// queue: they return ErrBusy immediately.
func (l *Loop) RunOnce(ctx context.Context) (*board.Board, error) {
	if !l.running.TryLock() {
		l.metrics.RecordCycle(metrics.CycleSkipped, 0)
		l.log.Info("Refresh skipped, previous cycle still running")
		return nil, ErrBusy
	}
	defer l.running.Unlock()

	start := time.Now()
	sources := l.resolver.Resolve(ctx, l.cfg.Feeds)
	s := board.NewSession(l.cal, sources, l.observe)
	b := l.computer.Compute(ctx, s, l.cfg.Reports)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.current.Store(b)

	d := time.Since(start)
	status := metrics.CycleOK
	if b.Partial {
		status = metrics.CyclePartial
	}
	l.metrics.RecordCycle(status, d)
	l.log.Info("Board published",
		logger.String("cycle_id", b.CycleID),
		logger.String("status", status),
		logger.Duration("duration", d),
		logger.Int("feeds", s.Loaded()),
		logger.Int("reports", len(b.Reports)),
	)
	return b, nil
}

func (l *Loop) observe(feed string, rows int, d time.Duration, err error) {
	l.metrics.RecordFetch(feed, rows, d, err)
	if err != nil {
		l.log.Warn("Feed load failed", logger.String("feed", feed), logger.Duration("duration", d), logger.Error(err))
		return
	}
	l.log.Debug("Feed loaded", logger.String("feed", feed), logger.Int("rows", rows), logger.Duration("duration", d))
}
