package types

import (
	"time"
)

// Finding represents a discovered type confusion weakness
type Finding struct {
	ID          string    `json:"id" yaml:"id"`
	Type        string    `json:"type" yaml:"type"`
	Severity    string    `json:"severity" yaml:"severity"`     // info
	Confidence  string    `json:"confidence" yaml:"confidence"` // firm
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	URL         string    `json:"url" yaml:"url"`
	Method      string    `json:"method" yaml:"method"`
	Parameter   string    `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Kind        string    `json:"insertion_point_kind,omitempty" yaml:"insertion_point_kind,omitempty"`
	Payload     string    `json:"payload,omitempty" yaml:"payload,omitempty"`
	Evidence    *Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// Evidence contains proof of the finding
type Evidence struct {
	Request      string       `json:"request" yaml:"request"`
	Response     *ResponseRef `json:"response" yaml:"response"`
	BaselineResp *ResponseRef `json:"baseline_response,omitempty" yaml:"baseline_response,omitempty"`
	Markers      []Marker     `json:"request_markers,omitempty" yaml:"request_markers,omitempty"`
}

// ResponseRef summarizes the parts of a response the oracle looks at
type ResponseRef struct {
	StatusCode int `json:"status_code" yaml:"status_code"`
	BodyLength int `json:"body_length" yaml:"body_length"`
}

// Marker is a half-open byte range [Start, End) into a request
type Marker struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Shift returns the marker moved left by n bytes
func (m Marker) Shift(n int) Marker {
	return Marker{Start: m.Start - n, End: m.End - n}
}

// FindingTypeTypeConfusion is the only finding type this scanner emits
const FindingTypeTypeConfusion = "type_confusion"

// Severity constants
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Confidence constants
const (
	ConfidenceCertain   = "certain"
	ConfidenceFirm      = "firm"
	ConfidenceTentative = "tentative"
)

// ScanResult contains the complete scan results
type ScanResult struct {
	ScanID    string        `json:"scan_id" yaml:"scan_id"`
	Target    string        `json:"target" yaml:"target"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Findings  []Finding     `json:"findings" yaml:"findings"`
	Summary   *ScanSummary  `json:"summary" yaml:"summary"`
	Targets   int           `json:"targets_scanned" yaml:"targets_scanned"`
	Probes    int           `json:"probes_run" yaml:"probes_run"`
	Requests  int           `json:"requests_made" yaml:"requests_made"`
	Errors    []ScanError   `json:"errors,omitempty" yaml:"errors,omitempty"`
	Config    *ScanConfig   `json:"config,omitempty" yaml:"config,omitempty"`
}

// ScanSummary provides statistics about the scan
type ScanSummary struct {
	TotalFindings int            `json:"total_findings" yaml:"total_findings"`
	ByTitle       map[string]int `json:"by_title" yaml:"by_title"`
	ByParameter   map[string]int `json:"by_parameter" yaml:"by_parameter"`
	BySeverity    map[string]int `json:"by_severity" yaml:"by_severity"`
}

// ScanError represents a probe that failed open
type ScanError struct {
	URL       string    `json:"url" yaml:"url"`
	Parameter string    `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Error     string    `json:"error" yaml:"error"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// ScanConfig captures the configuration used for the scan
type ScanConfig struct {
	InputFile   string  `json:"input_file,omitempty" yaml:"input_file,omitempty"`
	InputType   string  `json:"input_type" yaml:"input_type"`
	Concurrency int     `json:"concurrency" yaml:"concurrency"`
	RateLimit   float64 `json:"rate_limit" yaml:"rate_limit"`
	Timeout     int     `json:"timeout" yaml:"timeout"`
	ProxyURL    string  `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`
}

// NewScanSummary creates a summary from findings
func NewScanSummary(findings []Finding) *ScanSummary {
	summary := &ScanSummary{
		TotalFindings: len(findings),
		ByTitle:       make(map[string]int),
		ByParameter:   make(map[string]int),
		BySeverity:    make(map[string]int),
	}

	for _, f := range findings {
		summary.ByTitle[f.Title]++
		summary.BySeverity[f.Severity]++
		if f.Parameter != "" {
			summary.ByParameter[f.Parameter]++
		}
	}

	return summary
}
