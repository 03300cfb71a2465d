package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"opsboard/internal/csvfeed"
)

// XLSXSource reads one sheet of a workbook, from disk or over HTTP.
type XLSXSource struct {
	key      string
	path     string
	location string
	sheet    string
	open     func(ctx context.Context) (io.Reader, error)
}

// NewXLSXFile reads the workbook at path. An empty sheet means the first.
func NewXLSXFile(key, path, sheet string) *XLSXSource {
	return &XLSXSource{
		key:      key,
		path:     path,
		location: "xlsx:" + absPath(path) + "#" + sheet,
		sheet:    sheet,
		open: func(context.Context) (io.Reader, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(data), nil
		},
	}
}

// NewXLSXURL downloads the workbook with fetcher on every load.
func NewXLSXURL(key, rawURL, sheet string, timeout time.Duration, fetcher *Fetcher) *XLSXSource {
	return &XLSXSource{
		key:      key,
		location: NormalizeURL(rawURL) + "#" + sheet,
		sheet:    sheet,
		open: func(ctx context.Context) (io.Reader, error) {
			body, err := fetcher.Fetch(ctx, rawURL, timeout)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(body), nil
		},
	}
}

// Key implements Source.
func (s *XLSXSource) Key() string { return s.key }

// Location implements Source.
func (s *XLSXSource) Location() string { return s.location }

// Path is the workbook on disk, or "" for a downloaded workbook.
func (s *XLSXSource) Path() string { return s.path }

// Load implements Source. Cells come back as their formatted text, so dates
// and thousands separators look the way they do in the published CSV.
func (s *XLSXSource) Load(ctx context.Context) (csvfeed.Feed, error) {
	r, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.key, err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.key, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, s.key, err)
	}
	return csvfeed.FromRows(rows), nil
}
