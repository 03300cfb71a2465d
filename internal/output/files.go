package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"opsboard/internal/board"
	"opsboard/internal/ranked"
)

// WriteJSON writes the board as indented JSON.
func WriteJSON(b *board.Board, path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteRankedCSV writes every ranked row of the board's today_ranked
// reports, one line per row.
func WriteRankedCSV(b *board.Board, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := EncodeRankedCSV(file, b); err != nil {
		return err
	}
	return file.Close()
}

// EncodeRankedCSV is WriteRankedCSV onto w.
func EncodeRankedCSV(w io.Writer, b *board.Board) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"report",
		"date",
		"id",
		"category",
		"location",
		"time",
		"status",
		"status_label",
		"extra",
	}); err != nil {
		return err
	}

	for _, r := range b.Reports {
		tr, ok := r.Data.(board.TodayRanked)
		if !ok {
			continue
		}
		for _, rec := range tr.Records {
			if err := writer.Write([]string{
				r.Name,
				tr.Date,
				rec.ID,
				rec.Category,
				rec.Location,
				rec.Time,
				string(rec.Status),
				rec.StatusLabel,
				joinExtra(rec),
			}); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func joinExtra(rec ranked.Record) string {
	keys := make([]string, 0, len(rec.Extra))
	for k := range rec.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ";"
		}
		out += k + "=" + rec.Extra[k]
	}
	return out
}

// maxSheetName is the spreadsheet limit on sheet name length.
const maxSheetName = 31

// WriteXLSX exports the board with one sheet per report.
func WriteXLSX(b *board.Board, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	names := sheetNames(b.Reports)
	for i, r := range b.Reports {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := fillSheet(f, name, r); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}
	return f.SaveAs(path)
}

func fillSheet(f *excelize.File, sheet string, r board.Report) error {
	g := Tabulate(r)
	row := 1
	put := func(values []any) error {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	meta := []any{r.Title}
	if r.Stale || r.Error != "" {
		meta = append(meta, "stale: "+r.Error)
	}
	if err := put(meta); err != nil {
		return err
	}
	if g.Caption != "" {
		if err := put([]any{g.Caption}); err != nil {
			return err
		}
	}
	header := make([]any, len(g.Header))
	for i, h := range g.Header {
		header[i] = h
	}
	if err := put(header); err != nil {
		return err
	}
	for _, values := range g.Rows {
		if err := put(values); err != nil {
			return err
		}
	}
	return nil
}

// sheetNames gives every report a distinct legal sheet name. Characters a
// workbook forbids become "_", names are cut to the length limit, and
// collisions (compared case-insensitively, as spreadsheets do) get a "~N"
// suffix.
func sheetNames(reports []board.Report) []string {
	out := make([]string, len(reports))
	taken := make(map[string]bool, len(reports))
	for i, r := range reports {
		base := sheetName(r.Name)
		name := base
		for n := 2; taken[strings.ToLower(name)]; n++ {
			suffix := "~" + strconv.Itoa(n)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		taken[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func sheetName(name string) string {
	name = strings.Trim(sheetReplacer.Replace(name), "' ")
	if name == "" {
		return "report"
	}
	return truncate(name, maxSheetName)
}

var sheetReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
