package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opsboard/internal/csvfeed"
)

// DefaultMaxBody caps a single download. Published sheets are far smaller.
const DefaultMaxBody = 32 << 20

// Fetcher downloads feed bodies with a per-attempt timeout, retries and an
// optional cache-busting query parameter.
type Fetcher struct {
	Client         *http.Client
	Timeout        time.Duration
	Retry          RetryConfig
	CacheBustParam string
	UserAgent      string
	// MaxBody is the largest accepted body in bytes.
	MaxBody int64
	Now     func() time.Time
}

// NewFetcher returns a Fetcher on its own http.Client.
func NewFetcher(timeout time.Duration, retry RetryConfig, cacheBustParam string) *Fetcher {
	return &Fetcher{
		Client:         &http.Client{},
		Timeout:        timeout,
		Retry:          retry,
		CacheBustParam: cacheBustParam,
		UserAgent:      "opsboard",
		MaxBody:        DefaultMaxBody,
		Now:            time.Now,
	}
}

// Fetch returns the body of rawURL. timeout overrides the fetcher default
// when positive.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = f.Timeout
	}
	var body []byte
	err := withRetry(ctx, f.Retry, func(ctx context.Context) error {
		b, err := f.fetchOnce(ctx, f.bust(rawURL), timeout)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, URL: NormalizeURL(target)}
	}
	limit := f.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes from %s", ErrTooLarge, limit, NormalizeURL(target))
	}
	return body, nil
}

// bust appends the cache-busting parameter the way the sheet front end does.
func (f *Fetcher) bust(rawURL string) string {
	if f.CacheBustParam == "" {
		return rawURL
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + f.CacheBustParam + "=" + strconv.FormatInt(now().UnixMilli(), 10)
}

// looksLikeHTML sniffs the body the way browsers do.
func looksLikeHTML(body []byte) bool {
	return strings.HasPrefix(http.DetectContentType(body), "text/html")
}

// HTTPSource is a published CSV export.
type HTTPSource struct {
	key     string
	url     string
	timeout time.Duration
	fetcher *Fetcher
}

// NewHTTPSource builds an HTTP feed. timeout 0 uses the fetcher default.
func NewHTTPSource(key, rawURL string, timeout time.Duration, fetcher *Fetcher) *HTTPSource {
	return &HTTPSource{key: key, url: rawURL, timeout: timeout, fetcher: fetcher}
}

// Key implements Source.
func (s *HTTPSource) Key() string { return s.key }

// Location implements Source.
func (s *HTTPSource) Location() string { return NormalizeURL(s.url) }

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) (csvfeed.Feed, error) {
	body, err := s.fetcher.Fetch(ctx, s.url, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.key, err)
	}
	if looksLikeHTML(body) {
		return nil, fmt.Errorf("fetch %s: %w", s.key, ErrNotCSV)
	}
	return csvfeed.Parse(string(body)), nil
}
