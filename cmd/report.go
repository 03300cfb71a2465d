package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"opsboard/internal/board"
	"opsboard/internal/logger"
	"opsboard/internal/output"
	"opsboard/internal/refresh"
	"opsboard/internal/source"
)

func reportCommand() *cobra.Command {
	var (
		jsonOut string
		csvOut  string
		xlsxOut string
		asOf    string
		now     string
		only    []string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run one refresh cycle and print every report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cal, err := calendarFor(cfg.Timezone, asOf, now)
			if err != nil {
				return err
			}
			if len(only) > 0 {
				if cfg.Reports, err = selectReports(cfg.Reports, only); err != nil {
					return err
				}
			}

			factory := source.NewFactory(cfg, log)
			defer factory.Close()

			computer := board.NewComputer(cfg, nil, nil, log)
			loop := refresh.NewLoop(cfg, factory, computer, cal, nil, log)
			b, err := loop.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			if err := output.WriteText(cmd.OutOrStdout(), b); err != nil {
				return err
			}
			for _, w := range []struct {
				path  string
				write func(*board.Board, string) error
			}{
				{jsonOut, output.WriteJSON},
				{csvOut, output.WriteRankedCSV},
				{xlsxOut, output.WriteXLSX},
			} {
				if w.path == "" {
					continue
				}
				if err := w.write(b, w.path); err != nil {
					return fmt.Errorf("write %s: %w", w.path, err)
				}
				log.Info("Report written", logger.String("path", w.path))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jsonOut, "json", "", "optional JSON output path")
	cmd.Flags().StringVar(&csvOut, "csv", "", "optional CSV output of ranked rows")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "optional xlsx export, one sheet per report")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&now, "now", "", "time of day for statuses (HH:MM), default now")
	cmd.Flags().StringSliceVar(&only, "report", nil, "only these reports (repeatable)")
	return cmd
}
