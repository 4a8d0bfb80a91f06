package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/domain"
)

// ValidationError is a configuration error tied to a key.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		add("log_level", "%v", err)
	}

	if c.Chart.Dir == "" {
		add("chart.dir", "must not be empty")
	}
	if c.Chart.RedisURL != "" {
		if u, err := url.Parse(c.Chart.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			add("chart.redis_url", "must be a redis:// or rediss:// URL")
		}
	}
	if c.Chart.SessionTTL < 0 {
		add("chart.session_ttl", "must not be negative")
	}
	if c.Chart.LockTTL <= 0 {
		add("chart.lock_ttl", "must be positive")
	}

	for _, f := range []struct{ field, raw string }{
		{"feed.log_url", c.Feed.LogURL},
		{"feed.archiver_url", c.Feed.ArchiverURL},
	} {
		if u, err := url.Parse(f.raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(f.field, "must be an http(s) URL, got %q", f.raw)
		}
	}
	if c.Feed.Timeout <= 0 {
		add("feed.timeout", "must be positive")
	}

	if c.Logwatch.Interval <= 0 {
		add("logwatch.interval", "must be positive")
	}
	if c.Logwatch.MaxMessages < 0 {
		add("logwatch.max_messages", "must not be negative")
	}
	if _, err := domain.ParseSourcePattern(c.Logwatch.SourceFilter); err != nil {
		add("logwatch.source_filter", "%v", err)
	}

	if c.Archiver.Interval <= 0 {
		add("archiver.interval", "must be positive")
	}
	if _, err := domain.ParseSourcePattern(c.Archiver.Pattern); err != nil {
		add("archiver.pattern", "%v", err)
	}
	if c.Archiver.Selector != "" && !doublestar.ValidatePattern(c.Archiver.Selector) {
		add("archiver.selector", "bad glob %q", c.Archiver.Selector)
	}

	return errors.Join(errs...)
}
