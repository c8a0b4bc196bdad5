package parser

import (
	"fmt"
	"net/url"
	"os"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// RequestParser loads a single raw HTTP request, as saved from a proxy or
// written by hand
type RequestParser struct {
	filePath string
	baseURL  string
	scheme   string
}

// NewRequestParser creates a raw request parser. The request is sent to
// baseURL when set, otherwise to its Host header using scheme (http when
// empty).
func NewRequestParser(filePath, baseURL, scheme string) *RequestParser {
	return &RequestParser{filePath: filePath, baseURL: baseURL, scheme: scheme}
}

// Type returns the input type
func (p *RequestParser) Type() types.InputType {
	return types.InputTypeRequest
}

// Parse reads the request file. The target carries no response; the
// engine fetches a baseline.
func (p *RequestParser) Parse() ([]httpmsg.RequestResponse, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	req, err := ParseRawRequest(data, p.baseURL, p.scheme)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, p.filePath, err)
	}
	return []httpmsg.RequestResponse{{Request: req}}, nil
}

// ParseRawRequest parses raw request text and binds it to a service
func ParseRawRequest(data []byte, baseURL, scheme string) (*httpmsg.Request, error) {
	svc, override, err := serviceOverride(baseURL)
	if err != nil {
		return nil, err
	}
	if override {
		return httpmsg.ParseRequest(data, svc)
	}

	req, err := httpmsg.ParseRequest(data, httpmsg.Service{})
	if err != nil {
		return nil, err
	}
	if req.Service().Host == "" {
		return nil, fmt.Errorf("%w: no Host header and no base URL", ErrInvalidInput)
	}

	if scheme != "" && scheme != req.Service().Scheme {
		host := req.Header("Host")
		u, err := url.Parse(scheme + "://" + host)
		if err != nil {
			return nil, fmt.Errorf("%w: host %q: %v", ErrInvalidInput, host, err)
		}
		req = req.WithService(httpmsg.ServiceFromURL(u))
	}
	return req, nil
}
