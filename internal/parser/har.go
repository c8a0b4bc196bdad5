package parser

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// HARParser parses HAR (HTTP Archive) files
type HARParser struct {
	filePath string
	baseURL  string
}

// HAR represents a HAR file structure
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog represents the log section
type HARLog struct {
	Version string     `json:"version"`
	Entries []HAREntry `json:"entries"`
}

// HAREntry represents a single request/response pair
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
}

// HARRequest represents a request
type HARRequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []HARNameValue `json:"headers"`
	PostData    *HARPostData   `json:"postData,omitempty"`
}

// HARResponse represents a response
type HARResponse struct {
	Status     int            `json:"status"`
	StatusText string         `json:"statusText"`
	Headers    []HARNameValue `json:"headers"`
	Content    HARContent     `json:"content"`
}

// HARNameValue represents a name-value pair
type HARNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARPostData represents POST data
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARContent represents response content
type HARContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// Headers the transport recomputes or that browsers add per connection
var skipHARHeaders = map[string]bool{
	"host":            true,
	"content-length":  true,
	"accept-encoding": true,
	"connection":      true,
}

// NewHARParser creates a new HAR parser
func NewHARParser(filePath, baseURL string) *HARParser {
	return &HARParser{
		filePath: filePath,
		baseURL:  baseURL,
	}
}

// Type returns the input type
func (p *HARParser) Type() types.InputType {
	return types.InputTypeHAR
}

// Parse parses the HAR file. Entries with a status of zero (aborted or
// blocked in the browser) carry no base response.
func (p *HARParser) Parse() ([]httpmsg.RequestResponse, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var har HAR
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	override, hasOverride, err := serviceOverride(p.baseURL)
	if err != nil {
		return nil, err
	}

	var targets []httpmsg.RequestResponse
	for i, entry := range har.Log.Entries {
		req, err := p.parseRequest(entry.Request)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrParseFailed, i+1, err)
		}
		if hasOverride {
			req = req.WithService(override)
		}

		target := httpmsg.RequestResponse{Request: req}
		if entry.Response.Status > 0 {
			resp, err := p.parseResponse(entry.Response)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %v", ErrParseFailed, i+1, err)
			}
			target.Response = resp
		}
		targets = append(targets, target)
	}

	return Deduplicate(targets), nil
}

func (p *HARParser) parseRequest(r HARRequest) (*httpmsg.Request, error) {
	headers := make(map[string]string)
	for _, h := range r.Headers {
		name := strings.ToLower(h.Name)
		// HTTP/2 pseudo-headers
		if skipHARHeaders[name] || strings.HasPrefix(name, ":") {
			continue
		}
		headers[h.Name] = h.Value
	}

	body := ""
	if r.PostData != nil {
		body = r.PostData.Text
		if r.PostData.MimeType != "" && headerValue(headers, "Content-Type") == "" {
			headers["Content-Type"] = r.PostData.MimeType
		}
	}

	return httpmsg.NewRequest(NormalizeMethod(r.Method), r.URL, headers, body)
}

func (p *HARParser) parseResponse(r HARResponse) (*httpmsg.Response, error) {
	body := []byte(r.Content.Text)
	if r.Content.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(r.Content.Text)
		if err != nil {
			return nil, fmt.Errorf("decoding response body: %w", err)
		}
		body = decoded
	}

	resp := httpmsg.NewResponse(r.Status, body)
	if r.StatusText != "" {
		resp.Status = r.StatusText
	}
	for _, h := range r.Headers {
		resp.Headers.Add(h.Name, h.Value)
	}
	return resp, nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
