// Package types provides core data structures for typeconfusion
package types

import (
	"time"
)

// Config represents the application configuration
type Config struct {
	// Scan settings
	Scan ScanSettings `yaml:"scan" mapstructure:"scan"`

	// HTTP settings
	HTTP HTTPSettings `yaml:"http" mapstructure:"http"`

	// Output settings
	Output OutputSettings `yaml:"output" mapstructure:"output"`

	// Logging settings
	Log LogSettings `yaml:"log" mapstructure:"log"`

	// Metrics settings
	Metrics MetricsSettings `yaml:"metrics" mapstructure:"metrics"`
}

// ScanSettings holds scan configuration
type ScanSettings struct {
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit       float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FollowRedirects bool          `yaml:"follow_redirects" mapstructure:"follow_redirects"`
	MaxRedirects    int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	VerifySSL       bool          `yaml:"verify_ssl" mapstructure:"verify_ssl"`
}

// HTTPSettings holds HTTP client configuration
type HTTPSettings struct {
	ProxyURL   string            `yaml:"proxy_url" mapstructure:"proxy_url"`
	Headers    map[string]string `yaml:"headers" mapstructure:"headers"`
	Cookies    map[string]string `yaml:"cookies" mapstructure:"cookies"`
	AuthHeader string            `yaml:"auth_header" mapstructure:"auth_header"`
	UserAgent  string            `yaml:"user_agent" mapstructure:"user_agent"`
}

// OutputSettings holds output configuration
type OutputSettings struct {
	Format  string `yaml:"format" mapstructure:"format"` // json, yaml, text
	File    string `yaml:"file" mapstructure:"file"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
	Color   bool   `yaml:"color" mapstructure:"color"`
}

// LogSettings holds diagnostic and request log configuration
type LogSettings struct {
	Level      string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	File       string `yaml:"file" mapstructure:"file"`
	RequestLog string `yaml:"request_log" mapstructure:"request_log"` // JSON lines of every request sent
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// MetricsSettings holds prometheus exposition configuration
type MetricsSettings struct {
	Listen string `yaml:"listen" mapstructure:"listen"` // empty = disabled
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanSettings{
			Concurrency:     10,
			RateLimit:       10.0,
			Timeout:         30 * time.Second,
			FollowRedirects: false,
			MaxRedirects:    5,
			VerifySSL:       true,
		},
		HTTP: HTTPSettings{
			UserAgent: "TypeConfusion/1.0 (Security Scanner)",
			Headers:   make(map[string]string),
			Cookies:   make(map[string]string),
		},
		Output: OutputSettings{
			Format: "json",
			Color:  true,
		},
		Log: LogSettings{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// InputType represents the type of target input
type InputType string

const (
	InputTypeOpenAPI InputType = "openapi"
	InputTypeHAR     InputType = "har"
	InputTypeBurp    InputType = "burp"
	InputTypeRequest InputType = "request"
	InputTypeRaw     InputType = "raw"
	InputTypeUnknown InputType = "unknown"
)
