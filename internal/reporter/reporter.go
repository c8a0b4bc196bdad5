// Package reporter provides output formatting for scan results
package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Reporter interface for generating reports
type Reporter interface {
	// Generate generates a report from scan results
	Generate(result *types.ScanResult) ([]byte, error)

	// Write writes the report to a writer
	Write(result *types.ScanResult, w io.Writer) error

	// Format returns the report format name
	Format() string

	// Extension returns the file extension for this format
	Extension() string
}

// NewReporter creates a reporter based on format
func NewReporter(format string, options ReportOptions) (Reporter, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return NewJSONReporter(options), nil
	case "yaml", "yml":
		return NewYAMLReporter(options), nil
	case "text", "txt":
		return NewTextReporter(options), nil
	case "markdown", "md":
		return NewMarkdownReporter(options), nil
	case "burp":
		return NewBurpReporter(options), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// ReportOptions contains options for report generation
type ReportOptions struct {
	IncludeEvidence bool   // Include mutated requests and markers
	NoColor         bool   // Plain text output
	Title           string // Custom report title
	Version         string // Scanner version shown in text reports
}

// DefaultOptions returns default report options
func DefaultOptions() ReportOptions {
	return ReportOptions{
		IncludeEvidence: true,
		Title:           "Type Confusion Scan Report",
	}
}

// WriteToFile writes a report to a file
func WriteToFile(reporter Reporter, result *types.ScanResult, filename string) error {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return reporter.Write(result, file)
}

// sortedFindings returns the findings ordered by URL, parameter and title.
// The result's own slice is left untouched.
func sortedFindings(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		if out[i].Parameter != out[j].Parameter {
			return out[i].Parameter < out[j].Parameter
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// withoutEvidence returns a shallow copy of result whose findings carry no
// evidence
func withoutEvidence(result *types.ScanResult) *types.ScanResult {
	stripped := *result
	stripped.Findings = make([]types.Finding, len(result.Findings))
	for i, f := range result.Findings {
		f.Evidence = nil
		stripped.Findings[i] = f
	}
	return &stripped
}

// stripTags removes the <b> emphasis used in finding descriptions
func stripTags(s string) string {
	return strings.NewReplacer("<b>", "", "</b>", "").Replace(s)
}

// TruncateString truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
