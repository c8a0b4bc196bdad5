package reporter

import (
	"encoding/json"
	"io"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// JSONReporter generates JSON reports
type JSONReporter struct {
	options ReportOptions
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(options ReportOptions) *JSONReporter {
	return &JSONReporter{options: options}
}

// Format returns the format name
func (r *JSONReporter) Format() string {
	return "json"
}

// Extension returns the file extension
func (r *JSONReporter) Extension() string {
	return "json"
}

// Generate generates a JSON report
func (r *JSONReporter) Generate(result *types.ScanResult) ([]byte, error) {
	return json.MarshalIndent(r.prepareOutput(result), "", "  ")
}

// Write writes the JSON report to a writer
func (r *JSONReporter) Write(result *types.ScanResult, w io.Writer) error {
	data, err := r.Generate(result)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (r *JSONReporter) prepareOutput(result *types.ScanResult) *types.ScanResult {
	output := *result
	output.Findings = sortedFindings(result.Findings)
	if !r.options.IncludeEvidence {
		return withoutEvidence(&output)
	}
	return &output
}
