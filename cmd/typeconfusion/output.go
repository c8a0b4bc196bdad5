package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Console messages go to stderr; stdout carries only the report
var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	findingColor = color.New(color.FgCyan, color.Bold)
)

func setColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

func printBanner() {
	fmt.Fprintf(os.Stderr, "typeconfusion v%s\n\n", version)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(os.Stderr, "[*] "+format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	successColor.Fprintf(os.Stderr, "[+] "+format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warningColor.Fprintf(os.Stderr, "[!] "+format+"\n", args...)
}

func printFinding(f types.Finding) {
	findingColor.Fprintf(os.Stderr, "\n[%s] %s\n", strings.ToUpper(f.Severity), f.Title)
	fmt.Fprintf(os.Stderr, "    Endpoint: %s %s\n", f.Method, f.URL)
	if f.Parameter != "" {
		fmt.Fprintf(os.Stderr, "    Parameter: %s (%s)\n", f.Parameter, f.Kind)
	}
	if f.Payload != "" {
		fmt.Fprintf(os.Stderr, "    Payload: %s\n", f.Payload)
	}
}

func printSummary(result *types.ScanResult) {
	w := os.Stderr
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 51))
	fmt.Fprintln(w, "SCAN SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 51))
	fmt.Fprintf(w, "Target:     %s\n", result.Target)
	fmt.Fprintf(w, "Duration:   %s\n", scanDuration(result.Duration))
	fmt.Fprintf(w, "Targets:    %d\n", result.Targets)
	fmt.Fprintf(w, "Probes:     %d\n", result.Probes)
	fmt.Fprintf(w, "Requests:   %d\n", result.Requests)
	if len(result.Errors) > 0 {
		warningColor.Fprintf(w, "Abandoned:  %d\n", len(result.Errors))
	}
	fmt.Fprintln(w)

	total := 0
	if result.Summary != nil {
		total = result.Summary.TotalFindings
	}
	fmt.Fprintf(w, "Findings:   %d total\n", total)
	if result.Summary != nil {
		titles := make([]string, 0, len(result.Summary.ByTitle))
		for t := range result.Summary.ByTitle {
			titles = append(titles, t)
		}
		sort.Strings(titles)
		for _, t := range titles {
			infoColor.Fprintf(w, "  %-40s %d\n", t, result.Summary.ByTitle[t])
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 51))
}
