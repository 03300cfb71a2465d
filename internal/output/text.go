package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"opsboard/internal/board"
	"opsboard/internal/coerce"
)

// WriteText prints the board as one table per report.
func WriteText(w io.Writer, b *board.Board) error {
	var sb strings.Builder
	sb.WriteString("Ops Board\n")
	sb.WriteString(strings.Repeat("=", 38) + "\n")
	fmt.Fprintf(&sb, "As of: %s %s\n", b.Today, b.Now)
	fmt.Fprintf(&sb, "Cycle: %s (%s)\n", b.CycleID, b.Duration)
	if b.Partial {
		sb.WriteString("Some reports are stale or unavailable.\n")
	}

	for _, r := range b.Reports {
		sb.WriteString("\n" + r.Title + "\n")
		sb.WriteString(strings.Repeat("-", 38) + "\n")
		switch {
		case r.Stale:
			fmt.Fprintf(&sb, "Stale since cycle %s: %s\n", r.CycleID, r.Error)
		case !r.OK():
			fmt.Fprintf(&sb, "Unavailable: %s\n", r.Error)
			continue
		}
		if r.Skipped > 0 {
			fmt.Fprintf(&sb, "Rows skipped: %d\n", r.Skipped)
		}

		g := Tabulate(r)
		if len(g.Rows) == 0 {
			sb.WriteString("Nothing scheduled.\n")
			continue
		}
		sb.WriteString(renderTable(g) + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func renderTable(g Grid) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	if g.Caption != "" {
		t.SetCaption(g.Caption)
	}

	header := make(table.Row, len(g.Header))
	for i, h := range g.Header {
		header[i] = h
	}
	t.AppendHeader(header)

	var numeric []table.ColumnConfig
	for i := range g.Header {
		if len(g.Rows) > 0 && isNumber(g.Rows[0][i]) {
			numeric = append(numeric, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	t.SetColumnConfigs(numeric)

	for _, row := range g.Rows {
		out := make(table.Row, len(row))
		for i, cell := range row {
			out[i] = cellText(cell)
		}
		t.AppendRow(out)
	}
	return t.Render()
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, float64:
		return true
	}
	return false
}

func cellText(v any) string {
	switch x := v.(type) {
	case float64:
		return num(x)
	case string:
		if x == "" {
			return "-"
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

func num(v float64) string {
	return coerce.FormatNumber(v)
}
