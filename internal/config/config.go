// Package config describes the opsboard configuration file: where each feed
// comes from and which reports are computed from it.
package config

import (
	"time"

	"opsboard/internal/aggregate"
	"opsboard/internal/logger"
	"opsboard/internal/ranked"
	"opsboard/internal/timestatus"
)

// Report kinds.
const (
	KindTotals         = "totals"
	KindMonthly12      = "monthly12"
	KindRolling7       = "rolling7"
	KindMonthSummary   = "month_summary"
	KindPerMetric      = "per_metric"
	KindExpectedVsDone = "expected_vs_done"
	KindTodayRanked    = "today_ranked"
	KindWorkQueue      = "work_queue"
)

// Feed kinds.
const (
	FeedHTTP     = "http"
	FeedFile     = "file"
	FeedXLSX     = "xlsx"
	FeedPostgres = "postgres"
)

// Defaults.
const (
	DefaultPort           = 8080
	DefaultSchedule       = "@every 1m"
	DefaultHTTPTimeout    = 15 * time.Second
	DefaultHTTPAttempts   = 3
	DefaultHTTPBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	DefaultCacheBustParam = "t"
	DefaultCacheSize      = 128
	DefaultDebounce       = 2 * time.Second
	DefaultDBTimeout      = 12 * time.Second
)

// Config is the whole file.
type Config struct {
	Timezone    string                    `yaml:"timezone" env:"OPSBOARD_TIMEZONE"`
	Log         logger.Config             `yaml:"log"`
	HTTP        HTTPConfig                `yaml:"http"`
	Status      StatusConfig              `yaml:"status"`
	Categories  []timestatus.CategoryRule `yaml:"categories"`
	HeaderWords []string                  `yaml:"header_words" env:"OPSBOARD_HEADER_WORDS"`
	Refresh     RefreshConfig             `yaml:"refresh"`
	Server      ServerConfig              `yaml:"server"`
	Database    DatabaseConfig            `yaml:"database"`
	Registry    RegistryConfig            `yaml:"registry"`
	Feeds       map[string]FeedConfig     `yaml:"feeds"`
	Reports     []ReportConfig            `yaml:"reports"`
}

// HTTPConfig tunes remote feed fetching.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" env:"OPSBOARD_HTTP_TIMEOUT"`
	Attempts       int           `yaml:"attempts" env:"OPSBOARD_HTTP_ATTEMPTS"`
	Backoff        time.Duration `yaml:"backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	CacheBustParam string        `yaml:"cache_bust_param"`
	UserAgent      string        `yaml:"user_agent"`
}

// StatusConfig is the loading window and its labels.
type StatusConfig struct {
	WindowMinutes int               `yaml:"window_minutes" env:"OPSBOARD_WINDOW_MINUTES"`
	InclusiveEnd  bool              `yaml:"inclusive_end"`
	Labels        map[string]string `yaml:"labels"`
}

// RefreshConfig drives the serve loop.
type RefreshConfig struct {
	Schedule   string        `yaml:"schedule" env:"OPSBOARD_REFRESH_SCHEDULE"`
	WatchFiles bool          `yaml:"watch_files" env:"OPSBOARD_WATCH_FILES"`
	Debounce   time.Duration `yaml:"debounce"`
	CacheSize  int           `yaml:"cache_size"`
}

// ServerConfig is the JSON API listener.
type ServerConfig struct {
	Host         string        `yaml:"host" env:"OPSBOARD_HOST"`
	Port         int           `yaml:"port" env:"OPSBOARD_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Debug        bool          `yaml:"debug" env:"OPSBOARD_DEBUG"`
}

// DatabaseConfig is used by postgres feeds.
type DatabaseConfig struct {
	URL     string        `yaml:"url" env:"OPSBOARD_DB_URL"`
	Timeout time.Duration `yaml:"timeout"`
}

// RegistryConfig points at an optional registry sheet listing extra feeds.
type RegistryConfig struct {
	URL  string `yaml:"url" env:"OPSBOARD_REGISTRY_URL"`
	Path string `yaml:"path"`
}

// Enabled reports whether a registry is configured.
func (r RegistryConfig) Enabled() bool {
	return r.URL != "" || r.Path != ""
}

// FeedConfig locates one feed.
type FeedConfig struct {
	Kind    string        `yaml:"kind"`
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Path    string        `yaml:"path"`
	Sheet   string        `yaml:"sheet"`
	Table   string        `yaml:"table"`
	Columns []string      `yaml:"columns"`
	OrderBy string        `yaml:"order_by"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig is one board panel.
type ReportConfig struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Title string `yaml:"title"`
	Feed  string `yaml:"feed"`

	DateCol int                   `yaml:"date_col"`
	Metrics []aggregate.Metric    `yaml:"metrics"`
	Where   []aggregate.Condition `yaml:"where"`

	// MonthOffset shifts month reports from the current month; DayOffset
	// shifts the target or start date from today.
	MonthOffset int `yaml:"month_offset"`
	DayOffset   int `yaml:"day_offset"`

	Done   *SideConfig   `yaml:"done"`
	Ranked *RankedConfig `yaml:"ranked"`
	Queue  *QueueConfig  `yaml:"queue"`
}

// SideConfig is the second feed of an expected_vs_done report.
type SideConfig struct {
	Feed    string                `yaml:"feed"`
	DateCol int                   `yaml:"date_col"`
	Metrics []aggregate.Metric    `yaml:"metrics"`
	Where   []aggregate.Condition `yaml:"where"`
}

// RankedConfig locates the today_ranked display columns. Category and
// location columns default to -1, meaning the feed has none.
type RankedConfig struct {
	IDCol            int             `yaml:"id_col"`
	CategoryCol      int             `yaml:"category_col"`
	LocationCol      int             `yaml:"location_col"`
	TimeCol          int             `yaml:"time_col"`
	Extra            []ranked.Column `yaml:"extra"`
	DetectCandidates []int           `yaml:"detect_candidates"`
	DetectSample     int             `yaml:"detect_sample"`
}

// QueueConfig locates the work_queue columns.
type QueueConfig struct {
	IDCol        int             `yaml:"id_col"`
	CountryCol   int             `yaml:"country_col"`
	StatusCol    int             `yaml:"status_col"`
	SumCol       int             `yaml:"sum_col"`
	Extra        []ranked.Column `yaml:"extra"`
	DoneLabel    string          `yaml:"done_label"`
	WorkingLabel string          `yaml:"working_label"`
	Limit        int             `yaml:"limit"`
}

// FeedKeys lists every feed the report reads, primary first.
func (r ReportConfig) FeedKeys() []string {
	keys := []string{r.Feed}
	if r.Done != nil && r.Done.Feed != "" && r.Done.Feed != r.Feed {
		keys = append(keys, r.Done.Feed)
	}
	return keys
}

// AggregateSpec is the primary side as an aggregation spec. Month
// summaries count positive cells only.
func (r ReportConfig) AggregateSpec(headerWords []string) aggregate.Spec {
	return aggregate.Spec{
		DateCol:      r.DateCol,
		Metrics:      r.Metrics,
		Where:        r.Where,
		HeaderWords:  headerWords,
		PositiveOnly: r.Kind == KindMonthSummary,
	}
}

// DoneSpec is the done side of an expected_vs_done report.
func (r ReportConfig) DoneSpec(headerWords []string) aggregate.Spec {
	if r.Done == nil {
		return aggregate.Spec{}
	}
	return aggregate.Spec{DateCol: r.Done.DateCol, Metrics: r.Done.Metrics, Where: r.Done.Where, HeaderWords: headerWords}
}

// DoneFeed is the feed read for the done side, defaulting to Feed.
func (r ReportConfig) DoneFeed() string {
	if r.Done == nil || r.Done.Feed == "" {
		return r.Feed
	}
	return r.Done.Feed
}

// RankedSpec is the today_ranked spec.
func (r ReportConfig) RankedSpec() ranked.Spec {
	rc := r.Ranked
	if rc == nil {
		rc = &RankedConfig{CategoryCol: -1, LocationCol: -1}
	}
	return ranked.Spec{
		IDCol:       rc.IDCol,
		DateCol:     r.DateCol,
		CategoryCol: rc.CategoryCol,
		LocationCol: rc.LocationCol,
		TimeCol:     rc.TimeCol,
		Extra:       rc.Extra,
	}
}

// QueueSpec is the work_queue spec.
func (r ReportConfig) QueueSpec() ranked.QueueSpec {
	qc := r.Queue
	if qc == nil {
		qc = &QueueConfig{}
	}
	return ranked.QueueSpec{
		IDCol:        qc.IDCol,
		CountryCol:   qc.CountryCol,
		DateCol:      r.DateCol,
		StatusCol:    qc.StatusCol,
		SumCol:       qc.SumCol,
		Extra:        qc.Extra,
		DoneLabel:    qc.DoneLabel,
		WorkingLabel: qc.WorkingLabel,
		Limit:        qc.Limit,
	}
}

// Policy is the configured status window.
func (c *Config) Policy() timestatus.Policy {
	return timestatus.Policy{WindowMinutes: c.Status.WindowMinutes, InclusiveEnd: c.Status.InclusiveEnd}
}

// Ranker is the configured category order.
func (c *Config) Ranker() timestatus.Ranker {
	if len(c.Categories) == 0 {
		return timestatus.DefaultRanker()
	}
	return timestatus.Ranker{Rules: c.Categories}
}

// Labels merges configured status labels over the defaults.
func (c *Config) Labels() timestatus.Labels {
	labels := timestatus.DefaultLabels()
	for k, v := range c.Status.Labels {
		labels[timestatus.Status(k)] = v
	}
	return labels
}

// Report finds a report by name.
func (c *Config) Report(name string) (ReportConfig, bool) {
	for _, r := range c.Reports {
		if r.Name == name {
			return r, true
		}
	}
	return ReportConfig{}, false
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.HTTP.Attempts <= 0 {
		c.HTTP.Attempts = DefaultHTTPAttempts
	}
	if c.HTTP.Backoff <= 0 {
		c.HTTP.Backoff = DefaultHTTPBackoff
	}
	if c.HTTP.MaxBackoff <= 0 {
		c.HTTP.MaxBackoff = DefaultMaxBackoff
	}
	if c.HTTP.CacheBustParam == "" {
		c.HTTP.CacheBustParam = DefaultCacheBustParam
	}
	if c.Status.WindowMinutes == 0 {
		c.Status.WindowMinutes = timestatus.DefaultPolicy().WindowMinutes
	}
	if c.HeaderWords == nil {
		c.HeaderWords = aggregate.DefaultHeaderWords
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = DefaultSchedule
	}
	if c.Refresh.Debounce <= 0 {
		c.Refresh.Debounce = DefaultDebounce
	}
	if c.Refresh.CacheSize <= 0 {
		c.Refresh.CacheSize = DefaultCacheSize
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Database.Timeout <= 0 {
		c.Database.Timeout = DefaultDBTimeout
	}
	for key, f := range c.Feeds {
		if f.Kind == "" {
			f.Kind = FeedHTTP
		}
		if f.Name == "" {
			f.Name = key
		}
		c.Feeds[key] = f
	}
	for i := range c.Reports {
		if c.Reports[i].Title == "" {
			c.Reports[i].Title = c.Reports[i].Name
		}
	}
}
