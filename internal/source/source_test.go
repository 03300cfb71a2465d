package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opsboard/internal/config"
	"opsboard/internal/csvfeed"
	"opsboard/internal/logger"
	"opsboard/internal/source"
)

func fastFetcher() *source.Fetcher {
	f := source.NewFetcher(time.Second, source.RetryConfig{
		Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond,
	}, "t")
	f.Now = func() time.Time { return time.UnixMilli(1760000000000) }
	return f
}

func TestHTTPSource_LoadsAndBustsCache(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("날짜,값\r\n2026-02-03,\"1,000\"\r\n"))
	}))
	defer srv.Close()

	src := source.NewHTTPSource("daily", srv.URL+"/pub?gid=1&output=csv", 0, fastFetcher())
	feed, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, csvfeed.Feed{{"날짜", "값"}, {"2026-02-03", "1,000"}}, feed)
	assert.Equal(t, "gid=1&output=csv&t=1760000000000", gotQuery.Load())
	assert.Equal(t, srv.URL+"/pub?gid=1&output=csv", src.Location())
}

func TestHTTPSource_HTMLIsNotCSV(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Sign in</body></html>"))
	}))
	defer srv.Close()

	_, err := source.NewHTTPSource("daily", srv.URL, 0, fastFetcher()).Load(context.Background())
	require.ErrorIs(t, err, source.ErrNotCSV)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSource_OversizedBodyIsRejected(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/fits" {
			_, _ = w.Write([]byte("2026-02-03,1,2345\n"))
			return
		}
		_, _ = w.Write([]byte("2026-02-03,1,23456\n"))
	}))
	defer srv.Close()

	f := fastFetcher()
	f.MaxBody = 18

	feed, err := source.NewHTTPSource("fits", srv.URL+"/fits", 0, f).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, csvfeed.Feed{{"2026-02-03", "1", "2345"}}, feed)

	_, err = source.NewHTTPSource("big", srv.URL+"/big", 0, f).Load(context.Background())
	require.ErrorIs(t, err, source.ErrTooLarge)
	assert.Equal(t, int32(2), calls.Load(), "an oversized body is not retried")
}

func TestHTTPSource_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := source.NewHTTPSource("daily", srv.URL, 0, fastFetcher()).Load(context.Background())
	require.ErrorIs(t, err, source.ErrHTTPStatus)
	var se *source.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPSource_ServerErrorIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("a,b\n"))
	}))
	defer srv.Close()

	feed, err := source.NewHTTPSource("daily", srv.URL, 0, fastFetcher()).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, feed, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := source.NewHTTPSource("daily", srv.URL, 0, fastFetcher()).Load(context.Background())
	require.ErrorIs(t, err, source.ErrHTTPStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://x.example/pub?gid=1&t=123", "https://x.example/pub?gid=1"},
		{"https://x.example/pub?_ts=1&cache=no&gid=2", "https://x.example/pub?gid=2"},
		{"https://x.example/pub?t=1", "https://x.example/pub"},
		{" https://x.example/pub ", "https://x.example/pub"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, source.NormalizeURL(tt.in), tt.in)
	}
}

func TestParseRegistry(t *testing.T) {
	t.Parallel()

	feed := csvfeed.Parse(`enabled,key,name,url
1,ship,출고,https://x.example/ship
TRUE,daily,일별,https://x.example/daily
0,off,꺼짐,https://x.example/off
1,,이름만,https://x.example/nokey
true,nourl,주소없음,
yes,maybe,애매,https://x.example/maybe
`)
	got := source.ParseRegistry(feed)
	assert.Equal(t, []source.Entry{
		{Key: "ship", Name: "출고", URL: "https://x.example/ship"},
		{Key: "daily", Name: "일별", URL: "https://x.example/daily"},
	}, got)
	assert.Nil(t, source.ParseRegistry(nil))
}

func TestRegistry_FallsBackToLastGood(t *testing.T) {
	t.Parallel()

	good := csvfeed.Parse("enabled,key,name,url\n1,ship,출고,https://x.example/ship\n")
	src := &flaky{feed: good}
	reg := source.NewRegistry(src)

	_, _, err := source.NewRegistry(&flaky{fail: true}).Entries(context.Background())
	require.Error(t, err, "no last good list yet")

	entries, stale, err := reg.Entries(context.Background())
	require.NoError(t, err)
	assert.False(t, stale)
	require.Len(t, entries, 1)

	src.fail = true
	entries, stale, err = reg.Entries(context.Background())
	require.Error(t, err)
	assert.True(t, stale)
	assert.Equal(t, "ship", entries[0].Key)
}

type flaky struct {
	feed csvfeed.Feed
	fail bool
}

func (f *flaky) Key() string      { return "registry" }
func (f *flaky) Location() string { return "test:registry" }
func (f *flaky) Load(context.Context) (csvfeed.Feed, error) {
	if f.fail {
		return nil, errors.New("unreachable")
	}
	return f.feed, nil
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "workplace.csv")
	require.NoError(t, os.WriteFile(path, []byte("2026-02-03,1,2\n\n2026-02-04,3,4"), 0o644))

	src := source.NewFileSource("workplace", path)
	feed, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, feed, 2)
	assert.Equal(t, path, src.Path())

	_, err = source.NewFileSource("missing", filepath.Join(t.TempDir(), "nope.csv")).Load(context.Background())
	require.Error(t, err)
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXSource_File(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "작업현황", [][]any{
		{"인보이스", "국가", "", "날짜", "상태"},
		{"I-1", "VN", "", "2026-02-03", "완료"},
		{},
		{"I-2", "US", "", "2026-02-03", "작업중"},
	})

	feed, err := source.NewXLSXFile("facility", path, "작업현황").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, "I-2", feed[2].Cell(0))
	assert.Equal(t, "작업중", feed[2].Cell(4))

	first, err := source.NewXLSXFile("facility", path, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, feed, first, "empty sheet name reads the first sheet")

	_, err = source.NewXLSXFile("facility", path, "없는시트").Load(context.Background())
	require.Error(t, err)
}

func TestXLSXSource_URL(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "Sheet1", [][]any{{"a", "b"}, {"c", "d"}})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	src := source.NewXLSXURL("book", srv.URL+"/book.xlsx", "", 0, fastFetcher())
	feed, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, csvfeed.Feed{{"a", "b"}, {"c", "d"}}, feed)
	assert.Empty(t, src.Path())
}

func TestPostgresSource(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src, err := source.NewPostgresSource("shipping", source.FixedDB(db), "ops.shipping",
		[]string{"inv", "ship_date"}, "ship_date", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "postgres:SELECT inv, ship_date FROM ops.shipping ORDER BY ship_date", src.Location())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT inv, ship_date FROM ops.shipping ORDER BY ship_date")).
		WillReturnRows(sqlmock.NewRows([]string{"inv", "ship_date"}).
			AddRow("A-1", "2026-02-03").
			AddRow(nil, "2026-02-04").
			AddRow(nil, nil))

	feed, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, csvfeed.Feed{{"A-1", "2026-02-03"}, {"", "2026-02-04"}}, feed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_LocationFollowsQuery(t *testing.T) {
	t.Parallel()

	db := source.FixedDB(nil)
	daily, err := source.NewPostgresSource("daily", db, "ops", []string{"ship_date", "qty"}, "", 0)
	require.NoError(t, err)
	status, err := source.NewPostgresSource("status", db, "ops", []string{"invoice", "status"}, "", 0)
	require.NoError(t, err)
	ordered, err := source.NewPostgresSource("ordered", db, "ops", []string{"ship_date", "qty"}, "ship_date", 0)
	require.NoError(t, err)

	assert.NotEqual(t, daily.Location(), status.Location())
	assert.NotEqual(t, daily.Location(), ordered.Location())
}

func TestPostgresSource_QueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src, err := source.NewPostgresSource("daily", source.FixedDB(db), "daily", nil, "", 0)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM daily")).WillReturnError(errors.New("relation does not exist"))
	_, err = src.Load(context.Background())
	require.ErrorContains(t, err, "query daily")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_RejectsUnsafeIdentifiers(t *testing.T) {
	t.Parallel()

	db := source.FixedDB(nil)
	_, err := source.NewPostgresSource("x", db, "daily; DROP TABLE daily", nil, "", 0)
	require.Error(t, err)
	_, err = source.NewPostgresSource("x", db, "a.b.c", nil, "", 0)
	require.Error(t, err)
	_, err = source.NewPostgresSource("x", db, "daily", []string{"1col"}, "", 0)
	require.Error(t, err)
	_, err = source.NewPostgresSource("x", db, "daily", nil, "date desc", 0)
	require.Error(t, err)
}

func TestFactory_ResolveMergesRegistry(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("enabled,key,name,url\n1,ship,출고,https://x.example/registry-ship\n1,daily,일별,https://x.example/registry-daily\n"))
	}))
	defer srv.Close()

	cfg := &config.Config{
		Registry: config.RegistryConfig{URL: srv.URL},
		Feeds: map[string]config.FeedConfig{
			"daily": {Kind: config.FeedHTTP, URL: "https://x.example/configured-daily"},
			"bad":   {Kind: config.FeedPostgres, Table: "no good"},
		},
	}
	cfg.SetDefaults()
	f := source.NewFactory(cfg, logger.NewNop())
	defer f.Close()

	sources := f.Resolve(context.Background(), cfg.Feeds)
	require.Len(t, sources, 3)
	assert.Equal(t, "https://x.example/registry-ship", sources["ship"].Location())
	assert.Equal(t, "https://x.example/configured-daily", sources["daily"].Location(), "configured feed wins")

	_, err := sources["bad"].Load(context.Background())
	require.Error(t, err)
}
