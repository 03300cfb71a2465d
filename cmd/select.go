package cmd

import (
	"fmt"

	"opsboard/internal/config"
)

// selectReports keeps the named reports in the order given.
func selectReports(all []config.ReportConfig, names []string) ([]config.ReportConfig, error) {
	byName := make(map[string]config.ReportConfig, len(all))
	for _, r := range all {
		byName[r.Name] = r
	}
	out := make([]config.ReportConfig, 0, len(names))
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown report %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}
