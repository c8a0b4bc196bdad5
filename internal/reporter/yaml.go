package reporter

import (
	"bytes"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// YAMLReporter generates YAML reports
type YAMLReporter struct {
	options ReportOptions
}

// NewYAMLReporter creates a new YAML reporter
func NewYAMLReporter(options ReportOptions) *YAMLReporter {
	return &YAMLReporter{options: options}
}

// Format returns the format name
func (r *YAMLReporter) Format() string {
	return "yaml"
}

// Extension returns the file extension
func (r *YAMLReporter) Extension() string {
	return "yaml"
}

// Generate generates a YAML report
func (r *YAMLReporter) Generate(result *types.ScanResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes the YAML report to a writer
func (r *YAMLReporter) Write(result *types.ScanResult, w io.Writer) error {
	output := *result
	output.Findings = sortedFindings(result.Findings)
	out := &output
	if !r.options.IncludeEvidence {
		out = withoutEvidence(out)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
