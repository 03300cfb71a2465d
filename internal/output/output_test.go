package output_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opsboard/internal/aggregate"
	"opsboard/internal/board"
	"opsboard/internal/output"
	"opsboard/internal/ranked"
	"opsboard/internal/timestatus"
)

func sampleBoard() *board.Board {
	return &board.Board{
		CycleID:  "c-1",
		Today:    "2026-02-03",
		Now:      "08:00",
		Duration: "12ms",
		Partial:  true,
		Reports: []board.Report{
			{
				Name: "containers_total", Title: "Containers", Kind: "totals", CycleID: "c-1",
				Data: aggregate.Point{Label: "total", Metrics: map[string]float64{"c20": 1234, "c40": 1}, Total: 1235, ActiveDays: 2, Average: 617.5},
			},
			{
				Name: "workplace_totals", Title: "Workplace", Kind: "per_metric", CycleID: "c-1",
				Data: []aggregate.Point{
					{Label: "a", Metrics: map[string]float64{"a": 3}, Total: 3, ActiveDays: 2, Average: 2},
					{Label: "b", Metrics: map[string]float64{"b": 1}, Total: 1, ActiveDays: 2, Average: 1},
					{Label: "total", Metrics: map[string]float64{"a": 3, "b": 1}, Total: 4, ActiveDays: 2, Average: 2},
				},
			},
			{
				Name: "ship_today", Title: "Shipping today", Kind: "today_ranked", CycleID: "c-0", Stale: true, Error: "HTTP 503",
				Data: board.TodayRanked{Date: "2026-02-03", DateCol: 3, Records: []ranked.Record{
					{ID: "S-2", Category: "20GP", Location: "D2", Time: "09:00", Status: timestatus.Waiting, StatusLabel: "대기", Extra: map[string]string{"country": "JP"}},
					{ID: "S-1", Category: "40HC", Location: "D1", Time: "07:30", Status: timestatus.InProgress, StatusLabel: "진행중", Extra: map[string]string{"country": "US"}},
				}},
			},
			{Name: "repair_this_month", Title: "Repair", Kind: "expected_vs_done", Error: "timeout"},
			{
				Name: "facility_queue", Title: "Facility", Kind: "work_queue",
				Data: ranked.Queue{},
			},
		},
	}
}

func TestTabulate_PointSlices(t *testing.T) {
	t.Parallel()

	per := output.Tabulate(sampleBoard().Reports[1])
	assert.Equal(t, []string{"label", "total", "active_days", "average"}, per.Header)
	require.Len(t, per.Rows, 3)

	monthly := output.Tabulate(board.Report{Data: []aggregate.Point{
		{Label: "1월", Metrics: map[string]float64{"c20": 1, "c40": 2}, Total: 3},
		{Label: "2월", Metrics: map[string]float64{"c20": 0, "c40": 0}},
	}})
	assert.Equal(t, []string{"label", "c20", "c40", "total", "active_days", "average"}, monthly.Header)
	assert.Equal(t, []any{"1월", 1.0, 2.0, 3.0, 0, 0.0}, monthly.Rows[0])
}

func TestTabulate_Ranked(t *testing.T) {
	t.Parallel()

	g := output.Tabulate(sampleBoard().Reports[2])
	assert.Equal(t, []string{"#", "id", "category", "location", "time", "status", "country"}, g.Header)
	assert.Equal(t, []any{1, "S-2", "20GP", "D2", "09:00", "대기", "JP"}, g.Rows[0])
	assert.Equal(t, "2026-02-03 (date column 3)", g.Caption)
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.WriteText(&buf, sampleBoard()))
	out := buf.String()

	assert.Contains(t, out, "As of: 2026-02-03 08:00")
	assert.Contains(t, out, "Some reports are stale or unavailable.")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "Stale since cycle c-0: HTTP 503")
	assert.Contains(t, out, "S-2")
	assert.Contains(t, out, "Unavailable: timeout")
	assert.Contains(t, out, "Nothing scheduled.")
}

func TestEncodeRankedCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.EncodeRankedCSV(&buf, sampleBoard()))
	assert.Equal(t,
		"report,date,id,category,location,time,status,status_label,extra\n"+
			"ship_today,2026-02-03,S-2,20GP,D2,09:00,waiting,대기,country=JP\n"+
			"ship_today,2026-02-03,S-1,40HC,D1,07:30,in_progress,진행중,country=US\n",
		buf.String())
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := sampleBoard()

	jsonPath := filepath.Join(dir, "board.json")
	require.NoError(t, output.WriteJSON(b, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "c-1", decoded["cycle_id"])

	xlsxPath := filepath.Join(dir, "board.xlsx")
	require.NoError(t, output.WriteXLSX(b, xlsxPath))
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"containers_total", "workplace_totals", "ship_today", "repair_this_month", "facility_queue"}, f.GetSheetList())
	rows, err := f.GetRows("ship_today")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Shipping today", "stale: HTTP 503"}, rows[0])
	assert.Equal(t, "S-1", rows[4][1])

	totals, err := f.GetRows("containers_total")
	require.NoError(t, err)
	assert.Equal(t, []string{"c20", "1234"}, totals[2])
}

func TestWriteXLSX_SheetNamesAreLegalAndDistinct(t *testing.T) {
	t.Parallel()

	point := aggregate.Point{Label: "total", Metrics: map[string]float64{"c20": 1}, Total: 1}
	b := &board.Board{Reports: []board.Report{
		{Name: "shipments_monthly_current_year_a", Title: "A", Data: point},
		{Name: "shipments_monthly_current_year_b", Title: "B", Data: point},
		{Name: "ship/today", Title: "C", Data: point},
		{Name: "Ship:Today", Title: "D", Data: point},
		{Name: "[*?]", Title: "E", Data: point},
	}}

	path := filepath.Join(t.TempDir(), "board.xlsx")
	require.NoError(t, output.WriteXLSX(b, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"shipments_monthly_current_year_",
		"shipments_monthly_current_yea~2",
		"ship_today",
		"Ship_Today~2",
		"____",
	}, f.GetSheetList())

	rows, err := f.GetRows("shipments_monthly_current_yea~2")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, rows[0], "the second report keeps its own sheet")
}
