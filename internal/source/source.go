// Package source loads feeds: published CSV over HTTP, local CSV files,
// XLSX workbooks and Postgres tables all come back as a csvfeed.Feed.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"opsboard/internal/csvfeed"
)

var (
	// ErrNotCSV means the upstream answered with an HTML page, usually a
	// login or "file not published" screen.
	ErrNotCSV = errors.New("response is not CSV")
	// ErrHTTPStatus wraps every non-2xx response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrTooLarge means the body exceeded the fetcher's size cap. The feed
	// is rejected rather than parsed from a truncated download.
	ErrTooLarge = errors.New("response body too large")
)

// Source yields one feed.
type Source interface {
	// Key is the configured feed key.
	Key() string
	// Location identifies the upstream for cache keys. HTTP locations are
	// normalized so cache-busting parameters do not split entries.
	Location() string
	Load(ctx context.Context) (csvfeed.Feed, error)
}

// StatusError carries the HTTP status of a failed fetch.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Unwrap lets errors.Is match ErrHTTPStatus.
func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

var cacheBustParams = []string{"t", "_ts", "cache"}

// NormalizeURL strips cache-busting query parameters (t, _ts, cache) so the
// same sheet always maps to the same key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, p := range cacheBustParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Static serves a fixed feed. The detect command and tests use it.
type Static struct {
	Name string
	Feed csvfeed.Feed
	Err  error
}

// Key implements Source.
func (s Static) Key() string { return s.Name }

// Location implements Source.
func (s Static) Location() string { return "static:" + s.Name }

// Load implements Source.
func (s Static) Load(context.Context) (csvfeed.Feed, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Feed, nil
}
