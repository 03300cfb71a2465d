// Package csvfeed turns published spreadsheet CSV exports into positional rows.
//
// The parser is deliberately more forgiving than encoding/csv: a double quote
// anywhere toggles quoting, an unterminated quote swallows the rest of the
// input, and nothing is ever reported as an error.
package csvfeed

import "strings"

// Row is one parsed record. Cells are addressed by position only.
type Row []string

// Cell returns the cell at idx, or "" when the row is shorter than idx
// (feeds omit trailing empty cells) or idx is negative.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// Blank reports whether every cell is empty or whitespace.
func (r Row) Blank() bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Feed is the full row set of one fetched source. A Feed is never mutated
// after Parse returns it.
type Feed []Row

// Parse tokenizes text into rows. Quoted fields may contain commas, newlines
// and "" escapes. Carriage returns are removed from every cell and rows made
// only of blank cells are dropped.
func Parse(text string) Feed {
	var (
		feed     Feed
		row      Row
		field    strings.Builder
		inQuotes bool
	)

	endRow := func() {
		row = append(row, field.String())
		field.Reset()
		feed = appendRow(feed, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			row = append(row, field.String())
			field.Reset()
		case ch == '\n' && !inQuotes:
			endRow()
		default:
			field.WriteByte(ch)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return feed
}

func appendRow(feed Feed, row Row) Feed {
	for i, c := range row {
		row[i] = strings.ReplaceAll(c, "\r", "")
	}
	if row.Blank() {
		return feed
	}
	return append(feed, row)
}

// FromRows builds a Feed from already split rows, such as workbook or table
// rows, with the same cleanup Parse applies. The input is copied.
func FromRows(rows [][]string) Feed {
	feed := make(Feed, 0, len(rows))
	for _, r := range rows {
		feed = appendRow(feed, append(Row(nil), r...))
	}
	return feed
}

// Head returns at most n leading rows without copying.
func (f Feed) Head(n int) Feed {
	if n < 0 || n >= len(f) {
		return f
	}
	return f[:n]
}
