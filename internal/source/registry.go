package source

import (
	"context"
	"strings"
	"sync"

	"opsboard/internal/csvfeed"
)

// Entry is one enabled row of a registry sheet.
type Entry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ParseRegistry reads enabled,key,name,url rows. The first row is a header.
// Rows need a key and a url, and enabled must be 1 or true.
func ParseRegistry(feed csvfeed.Feed) []Entry {
	if len(feed) == 0 {
		return nil
	}
	var out []Entry
	for _, row := range feed[1:] {
		enabled := strings.TrimSpace(row.Cell(0))
		e := Entry{
			Key:  strings.TrimSpace(row.Cell(1)),
			Name: strings.TrimSpace(row.Cell(2)),
			URL:  strings.TrimSpace(row.Cell(3)),
		}
		if e.Key == "" || e.URL == "" {
			continue
		}
		if enabled != "1" && !strings.EqualFold(enabled, "true") {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Registry loads entries and keeps the last successful list for when the
// registry sheet is unreachable.
type Registry struct {
	src Source

	mu   sync.Mutex
	last []Entry
	ok   bool
}

// NewRegistry wraps the registry sheet source.
func NewRegistry(src Source) *Registry {
	return &Registry{src: src}
}

// Entries returns the current list. On failure it returns the last good
// list with stale set, or the error when there never was one.
func (r *Registry) Entries(ctx context.Context) (entries []Entry, stale bool, err error) {
	feed, err := r.src.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.ok {
			return r.last, true, err
		}
		return nil, false, err
	}
	r.last = ParseRegistry(feed)
	r.ok = true
	return r.last, false, nil
}
