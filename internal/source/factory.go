package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"opsboard/internal/config"
	"opsboard/internal/csvfeed"
	"opsboard/internal/logger"
)

// Factory turns feed configuration into sources. It owns the shared HTTP
// fetcher and the lazily opened Postgres handle.
type Factory struct {
	fetcher  *Fetcher
	registry *Registry
	log      logger.Logger

	dbURL     string
	dbTimeout time.Duration
	dbMu      sync.Mutex
	db        *sql.DB
}

// NewFactory builds a Factory from cfg. The registry, when configured, is
// fetched with the same fetcher as every other feed.
func NewFactory(cfg *config.Config, log logger.Logger) *Factory {
	fetcher := NewFetcher(cfg.HTTP.Timeout, RetryConfig{
		Attempts:     cfg.HTTP.Attempts,
		InitialDelay: cfg.HTTP.Backoff,
		MaxDelay:     cfg.HTTP.MaxBackoff,
		Multiplier:   2,
	}, cfg.HTTP.CacheBustParam)
	if cfg.HTTP.UserAgent != "" {
		fetcher.UserAgent = cfg.HTTP.UserAgent
	}

	f := &Factory{
		fetcher:   fetcher,
		log:       log,
		dbURL:     cfg.Database.URL,
		dbTimeout: cfg.Database.Timeout,
	}
	switch {
	case cfg.Registry.URL != "":
		f.registry = NewRegistry(NewHTTPSource("registry", cfg.Registry.URL, 0, fetcher))
	case cfg.Registry.Path != "":
		f.registry = NewRegistry(NewFileSource("registry", cfg.Registry.Path))
	}
	return f
}

// Fetcher is the shared HTTP fetcher.
func (f *Factory) Fetcher() *Fetcher { return f.fetcher }

func (f *Factory) openDB(ctx context.Context) (*sql.DB, error) {
	f.dbMu.Lock()
	defer f.dbMu.Unlock()
	if f.db != nil {
		return f.db, nil
	}
	db, err := OpenDB(ctx, f.dbURL, f.dbTimeout)
	if err != nil {
		return nil, err
	}
	f.db = db
	return db, nil
}

// Build creates the source for one feed.
func (f *Factory) Build(key string, fc config.FeedConfig) (Source, error) {
	switch fc.Kind {
	case config.FeedHTTP, "":
		return NewHTTPSource(key, fc.URL, fc.Timeout, f.fetcher), nil
	case config.FeedFile:
		return NewFileSource(key, fc.Path), nil
	case config.FeedXLSX:
		if fc.Path != "" {
			return NewXLSXFile(key, fc.Path, fc.Sheet), nil
		}
		return NewXLSXURL(key, fc.URL, fc.Sheet, fc.Timeout, f.fetcher), nil
	case config.FeedPostgres:
		timeout := fc.Timeout
		if timeout <= 0 {
			timeout = f.dbTimeout
		}
		return NewPostgresSource(key, f.openDB, fc.Table, fc.Columns, fc.OrderBy, timeout)
	default:
		return nil, fmt.Errorf("feed %s: unknown kind %q", key, fc.Kind)
	}
}

// Resolve merges registry feeds with configured feeds, configured winning on
// a key clash, and builds every source. A feed that cannot be built is
// returned as a source that fails on Load, so its reports fall back instead
// of the whole cycle failing.
func (f *Factory) Resolve(ctx context.Context, feeds map[string]config.FeedConfig) map[string]Source {
	merged := make(map[string]config.FeedConfig, len(feeds))
	if f.registry != nil {
		entries, stale, err := f.registry.Entries(ctx)
		if err != nil {
			f.log.Warn("Registry unavailable",
				logger.Error(err),
				logger.Bool("using_last_good", stale),
			)
		}
		for _, e := range entries {
			merged[e.Key] = config.FeedConfig{Kind: config.FeedHTTP, Name: e.Name, URL: e.URL}
		}
	}
	for key, fc := range feeds {
		merged[key] = fc
	}

	out := make(map[string]Source, len(merged))
	for _, key := range sortedKeys(merged) {
		src, err := f.Build(key, merged[key])
		if err != nil {
			f.log.Error("Feed misconfigured", logger.String("feed", key), logger.Error(err))
			src = broken{key: key, err: err}
		}
		out[key] = src
	}
	return out
}

// Close releases the database handle if one was opened.
func (f *Factory) Close() error {
	f.dbMu.Lock()
	defer f.dbMu.Unlock()
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

type broken struct {
	key string
	err error
}

func (b broken) Key() string      { return b.key }
func (b broken) Location() string { return "invalid:" + b.key }
func (b broken) Load(context.Context) (csvfeed.Feed, error) {
	return nil, b.err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
