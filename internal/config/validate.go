package config

import (
	"fmt"
	"net/url"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var reportKinds = map[string]bool{
	KindTotals:         true,
	KindMonthly12:      true,
	KindRolling7:       true,
	KindMonthSummary:   true,
	KindPerMetric:      true,
	KindExpectedVsDone: true,
	KindTodayRanked:    true,
	KindWorkQueue:      true,
}

// Validate checks the config after defaults are applied. Feeds named by
// reports must be configured unless a registry may supply them at runtime.
func (c *Config) Validate() error {
	if c.Status.WindowMinutes <= 0 {
		return &ValidationError{Field: "status.window_minutes", Message: "must be positive"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: "must be between 1 and 65535"}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Message: "must be one of: debug, info, warn, error"}
	}

	for key, f := range c.Feeds {
		if err := validateFeed(key, f, c.Database); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Reports))
	for i, r := range c.Reports {
		field := fmt.Sprintf("reports[%d]", i)
		if r.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "is required"}
		}
		if seen[r.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate report %q", r.Name)}
		}
		seen[r.Name] = true

		if !reportKinds[r.Kind] {
			return &ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown report kind %q", r.Kind)}
		}
		for _, key := range r.FeedKeys() {
			if key == "" {
				return &ValidationError{Field: field + ".feed", Message: "is required"}
			}
			if _, ok := c.Feeds[key]; !ok && !c.Registry.Enabled() {
				return &ValidationError{Field: field + ".feed", Message: fmt.Sprintf("unknown feed %q", key)}
			}
		}
		if err := c.validateReportSpec(r); err != nil {
			return &ValidationError{Field: field, Message: err.Error()}
		}
	}
	return nil
}

func (c *Config) validateReportSpec(r ReportConfig) error {
	switch r.Kind {
	case KindTodayRanked:
		return r.RankedSpec().Validate()
	case KindWorkQueue:
		return r.QueueSpec().Validate()
	case KindExpectedVsDone:
		if err := r.AggregateSpec(c.HeaderWords).Validate(); err != nil {
			return err
		}
		if r.Done == nil {
			return fmt.Errorf("done side is required")
		}
		return r.DoneSpec(c.HeaderWords).Validate()
	default:
		return r.AggregateSpec(c.HeaderWords).Validate()
	}
}

func validateFeed(key string, f FeedConfig, db DatabaseConfig) error {
	field := "feeds." + key
	switch f.Kind {
	case FeedHTTP:
		if _, err := url.ParseRequestURI(f.URL); err != nil || f.URL == "" {
			return &ValidationError{Field: field + ".url", Message: "must be an absolute URL"}
		}
	case FeedFile:
		if f.Path == "" {
			return &ValidationError{Field: field + ".path", Message: "is required"}
		}
	case FeedXLSX:
		if f.Path == "" && f.URL == "" {
			return &ValidationError{Field: field, Message: "xlsx feed needs a path or url"}
		}
	case FeedPostgres:
		if f.Table == "" {
			return &ValidationError{Field: field + ".table", Message: "is required"}
		}
		if db.URL == "" {
			return &ValidationError{Field: "database.url", Message: "is required by postgres feeds"}
		}
	default:
		return &ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown feed kind %q", f.Kind)}
	}
	return nil
}
