package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsboard/internal/api"
	"opsboard/internal/board"
	"opsboard/internal/metrics"
	"opsboard/internal/refresh"
)

type fakeBoards struct {
	current *board.Board
	next    *board.Board
	err     error
	runs    int
}

func (f *fakeBoards) Current() *board.Board { return f.current }

func (f *fakeBoards) RunOnce(context.Context) (*board.Board, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	f.current = f.next
	return f.next, nil
}

func sample() *board.Board {
	return &board.Board{
		CycleID: "c-1",
		Today:   "2026-02-03",
		Reports: []board.Report{
			{Name: "containers_total", Kind: "totals", Data: map[string]float64{"c20": 3}},
			{Name: "ship_today", Kind: "today_ranked", Stale: true, Error: "HTTP 503"},
		},
	}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_NotReady(t *testing.T) {
	r := api.NewRouter(&fakeBoards{}, prometheus.NewRegistry(), nil, false)

	w := do(t, r, http.MethodGet, "/api/board")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	w = do(t, r, http.MethodGet, "/api/reports/containers_total")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, false, health["ready"])
}

func TestRouter_Board(t *testing.T) {
	r := api.NewRouter(&fakeBoards{current: sample()}, prometheus.NewRegistry(), nil, false)

	w := do(t, r, http.MethodGet, "/api/board")
	require.Equal(t, http.StatusOK, w.Code)
	var b board.Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "c-1", b.CycleID)
	require.Len(t, b.Reports, 2)
	assert.True(t, b.Reports[1].Stale)

	w = do(t, r, http.MethodGet, "/api/reports/ship_today")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"HTTP 503"`)

	w = do(t, r, http.MethodGet, "/api/reports/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Refresh(t *testing.T) {
	fb := &fakeBoards{next: sample()}
	r := api.NewRouter(fb, prometheus.NewRegistry(), nil, false)

	w := do(t, r, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fb.runs)
	assert.Same(t, fb.next, fb.Current())

	fb.err = refresh.ErrBusy
	w = do(t, r, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"cycle_id":"c-1"`)

	fb.err = errors.New("context canceled")
	w = do(t, r, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(t, r, http.MethodGet, "/api/refresh")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordFallback("containers_total")

	r := api.NewRouter(&fakeBoards{}, reg, nil, false)
	w := do(t, r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `opsboard_report_fallbacks_total{report="containers_total"} 1`))
}
