package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"opsboard/internal/coerce"
	"opsboard/internal/csvfeed"
	"opsboard/internal/ranked"
	"opsboard/internal/source"
)

func detectCommand() *cobra.Command {
	var (
		feedKey    string
		candidates []int
		defaultCol int
		asOf       string
		sample     int
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show which column of a feed carries the target date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cal, err := calendarFor(cfg.Timezone, asOf, "")
			if err != nil {
				return err
			}
			factory := source.NewFactory(cfg, log)
			defer factory.Close()

			src, ok := factory.Resolve(cmd.Context(), cfg.Feeds)[feedKey]
			if !ok {
				return fmt.Errorf("unknown feed %q", feedKey)
			}
			feed, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}

			target := cal.Today(0)
			head := feed.Head(sample)
			chosen := ranked.DetectDateColumn(head, candidates, defaultCol, target, cal.Year())
			fmt.Fprint(cmd.OutOrStdout(), renderHits(head, candidates, target, cal.Year(), chosen))
			fmt.Fprintf(cmd.OutOrStdout(), "date column for %s: %d (default %d)\n", target, chosen, defaultCol)
			return nil
		},
	}

	cmd.Flags().StringVar(&feedKey, "feed", "", "feed key to inspect")
	cmd.Flags().IntSliceVar(&candidates, "candidates", []int{1, 2, 3, 5}, "columns to try, in order")
	cmd.Flags().IntVar(&defaultCol, "default", 3, "column used when no candidate matches")
	cmd.Flags().StringVar(&asOf, "as-of", "", "target date (YYYY-MM-DD), default today")
	cmd.Flags().IntVar(&sample, "sample", 100, "rows to inspect")
	_ = cmd.MarkFlagRequired("feed")
	return cmd
}

// renderHits counts, per candidate, the sampled rows dated target.
func renderHits(head csvfeed.Feed, candidates []int, target string, year, chosen int) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"column", "matches", ""})
	for _, col := range candidates {
		hits := 0
		for _, row := range head {
			if coerce.ToCanonicalDate(row.Cell(col), year) == target {
				hits++
			}
		}
		mark := ""
		if col == chosen {
			mark = "<"
		}
		t.AppendRow(table.Row{strconv.Itoa(col), hits, mark})
	}
	return t.Render() + "\n"
}
