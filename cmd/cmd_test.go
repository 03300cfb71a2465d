package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/config"
	"opsboard/internal/csvfeed"
)

func TestCalendarFor(t *testing.T) {
	cal, err := calendarFor("Asia/Seoul", "2026-02-03", "08:05")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-03", cal.Today(0))
	assert.Equal(t, 8*60+5, cal.MinuteOfDay())

	cal, err = calendarFor("Asia/Seoul", "2026.12.31", "")
	require.NoError(t, err)
	assert.Equal(t, "2027-01-01", cal.Today(1))

	live, err := calendarFor("Asia/Seoul", "", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), live.Now(), time.Minute)

	_, err = calendarFor("Asia/Seoul", "03/02/2026", "")
	require.Error(t, err)
	_, err = calendarFor("Asia/Seoul", "", "8am")
	require.Error(t, err)
}

func TestSelectReports(t *testing.T) {
	all := []config.ReportConfig{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	got, err := selectReports(all, []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)

	_, err = selectReports(all, []string{"z"})
	require.Error(t, err)
}

func TestRenderHits(t *testing.T) {
	feed := csvfeed.Parse("id,a,b,date\nS-1,2026-02-03,,2/3\nS-2,x,2026-02-03,2026.2.3\n")
	out := renderHits(feed, []int{1, 2, 3}, "2026-02-03", 2026, 3)
	assert.Contains(t, out, "<")
	assert.Contains(t, out, "2")
}
