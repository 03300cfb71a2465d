package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"opsboard/internal/api"
	"opsboard/internal/board"
	"opsboard/internal/civil"
	"opsboard/internal/logger"
	"opsboard/internal/metrics"
	"opsboard/internal/refresh"
	"opsboard/internal/source"
)

const stopTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh on a schedule and serve the board over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			lastGood, err := refresh.NewLastGood(cfg.Refresh.CacheSize)
			if err != nil {
				return err
			}
			factory := source.NewFactory(cfg, log)
			defer factory.Close()

			computer := board.NewComputer(cfg, lastGood, m, log)
			loop := refresh.NewLoop(cfg, factory, computer, civil.NewCalendar(civil.LoadZone(cfg.Timezone)), m, log)

			go func() {
				if _, err := loop.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Initial refresh failed", logger.Error(err))
				}
			}()

			sched, err := refresh.NewScheduler(ctx, cfg.Refresh.Schedule, loop, log)
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
				defer cancel()
				sched.Stop(stopCtx)
			}()

			if paths := refresh.WatchPaths(cfg); cfg.Refresh.WatchFiles && len(paths) > 0 {
				w, err := refresh.NewWatcher(paths, cfg.Refresh.Debounce, func() {
					if _, err := loop.RunOnce(ctx); err != nil && !errors.Is(err, refresh.ErrBusy) {
						log.Warn("File-triggered refresh failed", logger.Error(err))
					}
				}, log)
				if err != nil {
					return err
				}
				defer w.Close()
				go w.Run(ctx)
				log.Info("Watching local feeds", logger.Strings("paths", paths))
			}

			router := api.NewRouter(loop, reg, log, cfg.Server.Debug)
			return api.NewServer(cfg.Server, router, log).Run(ctx)
		},
	}
}
