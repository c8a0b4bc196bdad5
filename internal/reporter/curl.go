package reporter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// GenerateCurlCommand generates a curl command that sends req
func GenerateCurlCommand(req *httpmsg.Request) string {
	if req == nil {
		return ""
	}

	parts := []string{"curl"}

	// Array payloads put brackets in the URL, which curl would glob
	if strings.ContainsAny(req.Path(), "[]{}") {
		parts = append(parts, "-g")
	}

	if method := req.Method(); method != "" && method != "GET" {
		parts = append(parts, "-X", method)
	}

	for _, h := range req.Headers() {
		lowerName := strings.ToLower(h[0])
		if lowerName == "content-length" || lowerName == "host" {
			continue
		}
		parts = append(parts, "-H", shellEscape(h[0]+": "+h[1]))
	}

	if body := req.Body(); body != "" {
		parts = append(parts, "--data-binary", shellEscape(body))
	}

	parts = append(parts, shellEscape(req.URL()))

	return strings.Join(parts, " ")
}

// GenerateCurlFromFinding returns a curl command replaying the mutated
// request of a finding, or "" when the finding has no usable evidence
func GenerateCurlFromFinding(finding *types.Finding) string {
	req, err := evidenceRequest(finding)
	if err != nil {
		return ""
	}
	return GenerateCurlCommand(req)
}

// evidenceRequest parses the mutated request recorded in a finding and
// binds it to the finding's service
func evidenceRequest(finding *types.Finding) (*httpmsg.Request, error) {
	if finding == nil || finding.Evidence == nil || finding.Evidence.Request == "" {
		return nil, fmt.Errorf("finding has no request evidence")
	}
	u, err := url.Parse(finding.URL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("finding URL %q is not absolute", finding.URL)
	}
	return httpmsg.ParseRequest([]byte(finding.Evidence.Request), httpmsg.ServiceFromURL(u))
}

// GenerateReplicateSteps generates numbered steps to replicate a finding
func GenerateReplicateSteps(finding *types.Finding) []string {
	if finding == nil {
		return nil
	}

	steps := make([]string, 0, 4)
	steps = append(steps, fmt.Sprintf("Send the base request: %s %s", finding.Method, finding.URL))

	if finding.Parameter != "" && finding.Payload != "" {
		steps = append(steps, fmt.Sprintf("Replace the '%s' parameter with: %s", finding.Parameter, finding.Payload))
	}

	steps = append(steps, "Compare status codes and body lengths; they match within 40%")

	if curlCmd := GenerateCurlFromFinding(finding); curlCmd != "" {
		steps = append(steps, fmt.Sprintf("Or use this curl command:\n   %s", curlCmd))
	}

	numbered := make([]string, len(steps))
	for i, step := range steps {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, step)
	}

	return numbered
}

// shellEscape safely escapes a string for use in POSIX shell commands
func shellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if isSafeString(s) {
		return s
	}

	// ' -> '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// isSafeString returns true if the string only contains characters that
// need no shell quoting
func isSafeString(s string) bool {
	for _, c := range s {
		if (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '-' || c == '_' || c == '/' || c == ':' {
			continue
		}
		return false
	}
	return true
}
