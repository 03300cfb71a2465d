package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"opsboard/internal/logger"
)

// Scheduler triggers the loop on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

// NewScheduler registers loop.RunOnce under spec ("@every 1m", "*/5 * * * *").
// ctx bounds every triggered cycle.
func NewScheduler(ctx context.Context, spec string, loop *Loop, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(spec, func() {
		if _, err := loop.RunOnce(ctx); err != nil && !errors.Is(err, ErrBusy) {
			log.Warn("Scheduled refresh failed", logger.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, log: log}, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Refresh scheduler started")
}

// Stop halts the schedule and waits for a running cycle to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out")
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
