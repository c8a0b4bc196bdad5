package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// TextReporter generates Nmap-style text reports
type TextReporter struct {
	options ReportOptions
	title   *color.Color
	label   *color.Color
	payload *color.Color
	errText *color.Color
}

// NewTextReporter creates a new text reporter
func NewTextReporter(options ReportOptions) *TextReporter {
	r := &TextReporter{
		options: options,
		title:   color.New(color.FgCyan, color.Bold),
		label:   color.New(color.Faint),
		payload: color.New(color.FgYellow),
		errText: color.New(color.FgRed),
	}
	if options.NoColor {
		for _, c := range []*color.Color{r.title, r.label, r.payload, r.errText} {
			c.DisableColor()
		}
	}
	return r
}

// Format returns the format name
func (r *TextReporter) Format() string {
	return "text"
}

// Extension returns the file extension
func (r *TextReporter) Extension() string {
	return "txt"
}

// Generate generates a text report
func (r *TextReporter) Generate(result *types.ScanResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the text report to a writer
func (r *TextReporter) Write(result *types.ScanResult, w io.Writer) error {
	r.writeHeader(w, result)
	r.writeSummary(w, result)
	r.writeFindings(w, result)
	r.writeErrors(w, result)
	r.writeFooter(w, result)
	return nil
}

func (r *TextReporter) writeHeader(w io.Writer, result *types.ScanResult) {
	v := r.options.Version
	if v == "" {
		v = "unknown"
	}
	fmt.Fprintf(w, "\nStarting typeconfusion %s\n", v)
	fmt.Fprintf(w, "Scan report for %s\n", result.Target)
	fmt.Fprintf(w, "Scan started at %s\n\n", result.StartTime.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Probed %d insertion points across %d targets in %s (%d requests)\n\n",
		result.Probes, result.Targets, formatDuration(result.Duration), result.Requests)
}

func (r *TextReporter) writeSummary(w io.Writer, result *types.ScanResult) {
	summary := result.Summary
	if summary == nil {
		summary = types.NewScanSummary(result.Findings)
	}

	fmt.Fprintf(w, "FINDINGS BY TITLE\n")
	titles := make([]string, 0, len(summary.ByTitle))
	for title := range summary.ByTitle {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		fmt.Fprintf(w, "%-48s %d\n", title, summary.ByTitle[title])
	}
	fmt.Fprintf(w, "%-48s %d\n\n", "TOTAL", summary.TotalFindings)
}

func (r *TextReporter) writeFindings(w io.Writer, result *types.ScanResult) {
	if len(result.Findings) == 0 {
		fmt.Fprintf(w, "No type confusion found.\n\n")
		return
	}

	fmt.Fprintf(w, "FINDINGS DETAIL\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))

	for _, f := range sortedFindings(result.Findings) {
		r.writeFinding(w, f)
	}
}

func (r *TextReporter) writeFinding(w io.Writer, f types.Finding) {
	fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(f.Severity), r.title.Sprint(f.Title))
	fmt.Fprintf(w, "    %s %s %s\n", r.label.Sprint("URL:        "), f.Method, f.URL)
	if f.Parameter != "" {
		fmt.Fprintf(w, "    %s %s (%s)\n", r.label.Sprint("Parameter:  "), f.Parameter, f.Kind)
	}
	if f.Payload != "" {
		fmt.Fprintf(w, "    %s %s\n", r.label.Sprint("Payload:    "), r.payload.Sprint(f.Payload))
	}
	fmt.Fprintf(w, "    %s %s\n", r.label.Sprint("Confidence: "), f.Confidence)
	fmt.Fprintf(w, "    %s %s\n", r.label.Sprint("Description:"), TruncateString(stripTags(f.Description), 300))

	if f.Evidence != nil {
		if base, resp := f.Evidence.BaselineResp, f.Evidence.Response; base != nil && resp != nil {
			fmt.Fprintf(w, "    %s %d/%d bytes (base %d/%d bytes)\n", r.label.Sprint("Response:   "),
				resp.StatusCode, resp.BodyLength, base.StatusCode, base.BodyLength)
		}
		if r.options.IncludeEvidence {
			if cmd := GenerateCurlFromFinding(&f); cmd != "" {
				fmt.Fprintf(w, "    %s %s\n", r.label.Sprint("Replicate:  "), TruncateString(cmd, 160))
			}
		}
	}

	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeErrors(w io.Writer, result *types.ScanResult) {
	if len(result.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", r.errText.Sprintf("ABANDONED PROBES (%d)", len(result.Errors)))
	for _, e := range result.Errors {
		if e.Parameter != "" {
			fmt.Fprintf(w, "    %s [%s]: %s\n", e.URL, e.Parameter, e.Error)
		} else {
			fmt.Fprintf(w, "    %s: %s\n", e.URL, e.Error)
		}
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeFooter(w io.Writer, result *types.ScanResult) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(w, "Scan completed at %s\n", result.EndTime.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "typeconfusion done: %d targets scanned, %d findings\n", result.Targets, len(result.Findings))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, mins)
}
