package csvfeed_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/csvfeed"
)

func serialize(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(field, ",\n\"") {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(field, `"`, `""`))
				b.WriteByte('"')
				continue
			}
			b.WriteString(field)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows [][]string
	}{
		{"plain", [][]string{{"INV-1", "2026-02-03", "20GP"}, {"INV-2", "2026-02-04", "40HC"}}},
		{"embedded comma", [][]string{{"1,234", "Busan, KR"}}},
		{"embedded newline", [][]string{{"line one\nline two", "x"}}},
		{"embedded quotes", [][]string{{`a""b`, `say "hi"`}}},
		{"hangul", [][]string{{"인보이스", "상차위치", "07시"}}},
		{"leading empty cell", [][]string{{"", "b", "c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			feed := csvfeed.Parse(serialize(tt.rows))
			require.Len(t, feed, len(tt.rows))
			for i, row := range tt.rows {
				assert.Equal(t, row, []string(feed[i]))
			}
		})
	}
}

func TestParse_EscapedQuotePair(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse(`"a""""b"`)
	require.Len(t, feed, 1)
	assert.Equal(t, `a""b`, feed[0].Cell(0))
}

func TestParse_CRLF(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse("a,b\r\nc,d\r\n")
	require.Len(t, feed, 2)
	for _, row := range feed {
		for _, cell := range row {
			assert.NotContains(t, cell, "\r")
		}
	}
	assert.Equal(t, csvfeed.Row{"c", "d"}, feed[1])
}

func TestParse_NoTrailingNewline(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse("a,b\nc,d")
	require.Len(t, feed, 2)
	assert.Equal(t, csvfeed.Row{"c", "d"}, feed[1])
}

func TestParse_TrailingComma(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse("a,\n")
	require.Len(t, feed, 1)
	assert.Equal(t, csvfeed.Row{"a", ""}, feed[0])
}

func TestParse_Total(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"\n\n\n",
		`"unterminated`,
		"a,\"b\nc,d",
		`""`,
		`"`,
		",,,\n , ,\n",
		"\r\n\r\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { csvfeed.Parse(in) }, "input %q", in)
	}

	assert.Empty(t, csvfeed.Parse(""))
	assert.Empty(t, csvfeed.Parse(",,,\n , ,\n"), "blank rows are dropped")
}

func TestParse_UnterminatedQuoteKeepsRemainder(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse("x,\"open\nstill,open")
	require.Len(t, feed, 1)
	assert.Equal(t, csvfeed.Row{"x", "open\nstill,open"}, feed[0])
}

func TestParse_MidFieldQuoteToggles(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse(`ab"c,d"e,f`)
	require.Len(t, feed, 1)
	assert.Equal(t, csvfeed.Row{"abc,de", "f"}, feed[0])
}

func TestRow_CellPastEnd(t *testing.T) {
	t.Parallel()

	row := csvfeed.Row{"a"}
	assert.Equal(t, "a", row.Cell(0))
	assert.Equal(t, "", row.Cell(5))
	assert.Equal(t, "", row.Cell(-1))
}

func TestFeed_Head(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse("1\n2\n3\n")
	assert.Len(t, feed.Head(2), 2)
	assert.Len(t, feed.Head(10), 3)
	assert.Len(t, feed.Head(-1), 3)
}

func TestFromRows(t *testing.T) {
	t.Parallel()

	in := [][]string{{"a\r", "b"}, {"", " "}, {}, {"c"}}
	feed := csvfeed.FromRows(in)
	assert.Equal(t, csvfeed.Feed{{"a", "b"}, {"c"}}, feed)
	assert.Equal(t, "a\r", in[0][0], "input untouched")
}
