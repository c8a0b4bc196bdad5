package types

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"
)

// ValidationError is one invalid configuration field
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid field of a config
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		fmt.Fprintf(&sb, "  - %s: %s\n", err.Field, err.Message)
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ReportFormats are the accepted values of output.format
var ReportFormats = []string{"json", "yaml", "yml", "text", "txt", "markdown", "md", "burp"}

var logLevels = []string{"", "debug", "info", "warn", "error"}

// ConfigValidator validates configuration settings
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate checks every section and returns all problems found
func (v *ConfigValidator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	s := config.Scan
	v.check(s.Concurrency >= 1, "scan.concurrency", "must be at least 1", s.Concurrency)
	v.check(s.Concurrency <= 100, "scan.concurrency", "should not exceed 100 to avoid overwhelming targets", s.Concurrency)
	v.check(s.RateLimit >= 0, "scan.rate_limit", "cannot be negative (0 means unlimited)", s.RateLimit)
	v.check(s.RateLimit <= 1000, "scan.rate_limit", "extremely high rate limits may cause issues", s.RateLimit)
	v.check(s.Timeout >= time.Second, "scan.timeout", "should be at least 1 second", s.Timeout)
	v.check(s.Timeout <= 5*time.Minute, "scan.timeout", "timeout exceeds 5 minutes which may cause issues", s.Timeout)
	v.check(s.MaxRedirects >= 0, "scan.max_redirects", "cannot be negative", s.MaxRedirects)

	h := config.HTTP
	if h.ProxyURL != "" {
		u, err := url.Parse(h.ProxyURL)
		v.check(err == nil && u.Host != "", "http.proxy_url", "invalid URL format", h.ProxyURL)
	}
	v.check(h.UserAgent != "", "http.user_agent", "should not be empty", h.UserAgent)

	o := config.Output
	v.check(o.Format == "" || slices.Contains(ReportFormats, strings.ToLower(o.Format)), "output.format", "unknown format", o.Format)

	l := config.Log
	v.check(slices.Contains(logLevels, strings.ToLower(l.Level)), "log.level", "unknown log level", l.Level)
	v.check(l.MaxSizeMB >= 0, "log.max_size_mb", "cannot be negative", l.MaxSizeMB)
	v.check(l.MaxBackups >= 0, "log.max_backups", "cannot be negative", l.MaxBackups)
	v.check(l.MaxAgeDays >= 0, "log.max_age_days", "cannot be negative", l.MaxAgeDays)

	if m := config.Metrics.Listen; m != "" {
		_, _, err := net.SplitHostPort(m)
		v.check(err == nil, "metrics.listen", "must be host:port", m)
	}

	return v.errors
}

// check records an error unless ok holds
func (v *ConfigValidator) check(ok bool, field, message string, value interface{}) {
	if ok {
		return
	}
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(config *Config) error {
	if errs := NewConfigValidator().Validate(config); errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateInputFile checks that path names a readable regular file
func ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("input file does not exist: %s", path)
	case err != nil:
		return fmt.Errorf("cannot access input file: %w", err)
	case info.IsDir():
		return fmt.Errorf("input path is a directory, not a file: %s", path)
	}
	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch {
	case parsed.Scheme == "":
		return fmt.Errorf("URL must have a scheme (http or https)")
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	case parsed.Host == "":
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
