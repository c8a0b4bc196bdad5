package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// MarkdownReporter generates Markdown reports
type MarkdownReporter struct {
	options ReportOptions
}

// NewMarkdownReporter creates a new Markdown reporter
func NewMarkdownReporter(options ReportOptions) *MarkdownReporter {
	return &MarkdownReporter{options: options}
}

// Format returns the format name
func (r *MarkdownReporter) Format() string {
	return "markdown"
}

// Extension returns the file extension
func (r *MarkdownReporter) Extension() string {
	return "md"
}

// Generate generates a Markdown report
func (r *MarkdownReporter) Generate(result *types.ScanResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the Markdown report to a writer
func (r *MarkdownReporter) Write(result *types.ScanResult, w io.Writer) error {
	title := r.options.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	fmt.Fprintf(w, "# %s\n\n", title)

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Target | `%s` |\n", result.Target)
	fmt.Fprintf(w, "| Scan ID | `%s` |\n", result.ScanID)
	fmt.Fprintf(w, "| Start Time | %s |\n", result.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| Duration | %s |\n", result.Duration)
	fmt.Fprintf(w, "| Targets Scanned | %d |\n", result.Targets)
	fmt.Fprintf(w, "| Insertion Points Probed | %d |\n", result.Probes)
	fmt.Fprintf(w, "| Requests Made | %d |\n", result.Requests)
	fmt.Fprintf(w, "| Abandoned Probes | %d |\n", len(result.Errors))
	fmt.Fprintf(w, "\n")

	summary := result.Summary
	if summary == nil {
		summary = types.NewScanSummary(result.Findings)
	}
	if len(summary.ByTitle) > 0 {
		fmt.Fprintf(w, "### Findings by Title\n\n")
		fmt.Fprintf(w, "| Title | Count |\n")
		fmt.Fprintf(w, "|-------|-------|\n")
		titles := make([]string, 0, len(summary.ByTitle))
		for t := range summary.ByTitle {
			titles = append(titles, t)
		}
		sort.Strings(titles)
		for _, t := range titles {
			fmt.Fprintf(w, "| %s | %d |\n", t, summary.ByTitle[t])
		}
		fmt.Fprintf(w, "| **Total** | **%d** |\n\n", summary.TotalFindings)
	}

	fmt.Fprintf(w, "## Findings\n\n")

	if len(result.Findings) == 0 {
		fmt.Fprintf(w, "_No findings detected._\n\n")
		return nil
	}

	for i, f := range sortedFindings(result.Findings) {
		fmt.Fprintf(w, "### %d. %s\n\n", i+1, f.Title)

		fmt.Fprintf(w, "| Property | Value |\n")
		fmt.Fprintf(w, "|----------|-------|\n")
		fmt.Fprintf(w, "| Severity | %s |\n", f.Severity)
		fmt.Fprintf(w, "| Confidence | %s |\n", f.Confidence)
		fmt.Fprintf(w, "| Endpoint | `%s %s` |\n", f.Method, f.URL)
		if f.Parameter != "" {
			fmt.Fprintf(w, "| Parameter | `%s` (%s) |\n", f.Parameter, f.Kind)
		}
		fmt.Fprintf(w, "\n")

		// The description already carries <b> emphasis, which renders in Markdown
		fmt.Fprintf(w, "%s\n\n", f.Description)

		if f.Payload != "" {
			fmt.Fprintf(w, "**Payload:**\n\n```\n%s\n```\n\n", TruncateString(f.Payload, 500))
		}

		if r.options.IncludeEvidence && f.Evidence != nil && f.Evidence.Request != "" {
			fmt.Fprintf(w, "<details>\n<summary>Evidence</summary>\n\n")
			fmt.Fprintf(w, "**Request:**\n```http\n%s\n```\n\n", TruncateString(strings.TrimRight(f.Evidence.Request, "\r\n"), 2000))
			if resp := f.Evidence.Response; resp != nil {
				fmt.Fprintf(w, "**Response:** %d, %d bytes", resp.StatusCode, resp.BodyLength)
				if base := f.Evidence.BaselineResp; base != nil {
					fmt.Fprintf(w, " (base: %d, %d bytes)", base.StatusCode, base.BodyLength)
				}
				fmt.Fprintf(w, "\n\n")
			}
			fmt.Fprintf(w, "</details>\n\n")
		}

		fmt.Fprintf(w, "---\n\n")
	}

	return nil
}
