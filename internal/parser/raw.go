package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// RawParser parses URL lists. Each entry is a URL, optionally prefixed
// with a method ("POST https://api.example.com/users?id=1").
type RawParser struct {
	urls    []string
	baseURL string
}

// NewRawParser creates a new raw URL parser
func NewRawParser(baseURL string, urls []string) *RawParser {
	return &RawParser{
		baseURL: baseURL,
		urls:    urls,
	}
}

// NewRawParserFromFile creates a parser from a file with one URL per line.
// Blank lines and lines starting with '#' are skipped.
func NewRawParserFromFile(filePath, baseURL string) (*RawParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return NewRawParser(baseURL, urls), nil
}

// Type returns the input type
func (p *RawParser) Type() types.InputType {
	return types.InputTypeRaw
}

// Parse builds one bodiless request per entry. Invalid entries are
// skipped.
func (p *RawParser) Parse() ([]httpmsg.RequestResponse, error) {
	var targets []httpmsg.RequestResponse

	for _, raw := range p.urls {
		req, err := p.parseEntry(raw)
		if err != nil {
			continue
		}
		targets = append(targets, httpmsg.RequestResponse{Request: req})
	}

	return targets, nil
}

func (p *RawParser) parseEntry(raw string) (*httpmsg.Request, error) {
	method := "GET"
	urlPart := raw

	if before, after, ok := strings.Cut(raw, " "); ok {
		if maybeMethod := NormalizeMethod(before); isHTTPMethod(maybeMethod) {
			method = maybeMethod
			urlPart = strings.TrimSpace(after)
		}
	}

	if !strings.HasPrefix(urlPart, "http://") && !strings.HasPrefix(urlPart, "https://") {
		if p.baseURL == "" {
			return nil, fmt.Errorf("no base URL for relative path: %s", urlPart)
		}
		urlPart = strings.TrimSuffix(p.baseURL, "/") + "/" + strings.TrimPrefix(urlPart, "/")
	}

	if _, err := parseURL(urlPart); err != nil {
		return nil, err
	}
	return httpmsg.NewRequest(method, urlPart, nil, "")
}

// ParseEndpointList parses a comma-separated list of endpoints
func ParseEndpointList(list, baseURL string) ([]httpmsg.RequestResponse, error) {
	var urls []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			urls = append(urls, part)
		}
	}
	return NewRawParser(baseURL, urls).Parse()
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: not an absolute URL: %s", ErrInvalidInput, raw)
	}
	return u, nil
}
