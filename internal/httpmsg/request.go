// Package httpmsg provides immutable raw HTTP request and response values.
//
// Requests are kept as their raw wire text so that byte offsets reported by
// insertion points line up with what is actually sent. Every mutating
// operation returns a new value; the receiver is never modified.
package httpmsg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedRequest is returned when raw request text cannot be parsed
var ErrMalformedRequest = errors.New("malformed HTTP request")

const crlf = "\r\n"

// Service identifies the network endpoint a request is sent to
type Service struct {
	Scheme string `json:"scheme" yaml:"scheme"`
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
}

// ServiceFromURL derives a service from an absolute URL
func ServiceFromURL(u *url.URL) Service {
	svc := Service{Scheme: strings.ToLower(u.Scheme), Host: u.Hostname()}
	if svc.Scheme == "" {
		svc.Scheme = "http"
	}
	if p := u.Port(); p != "" {
		svc.Port, _ = strconv.Atoi(p)
	}
	if svc.Port == 0 {
		svc.Port = defaultPort(svc.Scheme)
	}
	return svc
}

// BaseURL returns scheme://host[:port], omitting the default port
func (s Service) BaseURL() string {
	if s.Port == 0 || s.Port == defaultPort(s.Scheme) {
		return fmt.Sprintf("%s://%s", s.Scheme, s.Host)
	}
	return fmt.Sprintf("%s://%s:%d", s.Scheme, s.Host, s.Port)
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// ContentType is the coarse classification of a request body
type ContentType int

const (
	ContentTypeNone ContentType = iota
	ContentTypeURLEncoded
	ContentTypeJSON
	ContentTypeMultipart
	ContentTypeXML
	ContentTypeUnknown
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeNone:
		return "NONE"
	case ContentTypeURLEncoded:
		return "URL_ENCODED"
	case ContentTypeJSON:
		return "JSON"
	case ContentTypeMultipart:
		return "MULTIPART"
	case ContentTypeXML:
		return "XML"
	default:
		return "UNKNOWN"
	}
}

// Request is a raw HTTP/1.x request bound to a service
type Request struct {
	service Service
	raw     string
}

// ParseRequest parses raw request text. Header line endings are normalized
// to CRLF; the body is kept byte for byte.
func ParseRequest(raw []byte, service Service) (*Request, error) {
	text := string(raw)

	head, body := text, ""
	if i := strings.Index(text, "\r\n\r\n"); i >= 0 {
		head, body = text[:i], text[i+4:]
	} else if i := strings.Index(text, "\n\n"); i >= 0 {
		head, body = text[:i], text[i+2:]
	}

	lines := strings.Split(head, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	fields := strings.Fields(lines[0])
	switch len(fields) {
	case 3:
	case 2:
		fields = append(fields, "HTTP/1.1")
	default:
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, lines[0])
	}
	lines[0] = strings.Join(fields, " ")

	for _, line := range lines[1:] {
		if line != "" && !strings.Contains(line, ":") {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
	}

	req := &Request{service: service, raw: strings.Join(lines, crlf) + crlf + crlf + body}

	// Absolute-form targets carry their own service
	if req.service.Host == "" {
		if u, err := url.Parse(fields[1]); err == nil && u.IsAbs() {
			req.service = ServiceFromURL(u)
		} else if host := req.Header("Host"); host != "" {
			if u, err := url.Parse("http://" + host); err == nil {
				req.service = ServiceFromURL(u)
			}
		}
	}

	return req, nil
}

// NewRequest builds a request from its parts
func NewRequest(method, rawURL string, headers map[string]string, body string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrMalformedRequest, rawURL)
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	var sb strings.Builder
	sb.WriteString(strings.ToUpper(method) + " " + target + " HTTP/1.1" + crlf)
	sb.WriteString("Host: " + u.Host + crlf)
	names := make([]string, 0, len(headers))
	for k := range headers {
		if strings.EqualFold(k, "Host") || strings.EqualFold(k, "Content-Length") {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		sb.WriteString(k + ": " + headers[k] + crlf)
	}
	if body != "" {
		sb.WriteString("Content-Length: " + strconv.Itoa(len(body)) + crlf)
	}
	sb.WriteString(crlf)
	sb.WriteString(body)

	return &Request{service: ServiceFromURL(u), raw: sb.String()}, nil
}

// String returns the raw request text
func (r *Request) String() string { return r.raw }

// Bytes returns a copy of the raw request
func (r *Request) Bytes() []byte { return []byte(r.raw) }

// Service returns the service the request is bound to
func (r *Request) Service() Service { return r.service }

// WithService returns a copy bound to another service
func (r *Request) WithService(s Service) *Request {
	return &Request{service: s, raw: r.raw}
}

// WithRaw returns a request with the same service and new raw text. The text
// is used verbatim; callers splicing into String() keep offsets stable.
func (r *Request) WithRaw(raw string) *Request {
	return &Request{service: r.service, raw: raw}
}

func (r *Request) requestLine() string {
	if i := strings.Index(r.raw, crlf); i >= 0 {
		return r.raw[:i]
	}
	return r.raw
}

// Method returns the request method
func (r *Request) Method() string {
	return strings.Fields(r.requestLine())[0]
}

// Target returns the request target as it appears on the request line
func (r *Request) Target() string {
	fields := strings.Fields(r.requestLine())
	if len(fields) < 2 {
		return "/"
	}
	return fields[1]
}

func (r *Request) version() string {
	fields := strings.Fields(r.requestLine())
	if len(fields) < 3 {
		return "HTTP/1.1"
	}
	return fields[2]
}

// Path returns the origin-form path including the query string
func (r *Request) Path() string {
	target := r.Target()
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		target = u.RequestURI()
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	return target
}

// PathWithoutQuery returns the path with the query string stripped
func (r *Request) PathWithoutQuery() string {
	path := r.Path()
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// Query returns the raw query string without the leading '?'
func (r *Request) Query() string {
	path := r.Path()
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[i+1:]
	}
	return ""
}

// URL returns the absolute request URL
func (r *Request) URL() string {
	return r.service.BaseURL() + r.Path()
}

// BodyOffset returns the byte offset where the body starts
func (r *Request) BodyOffset() int {
	if i := strings.Index(r.raw, crlf+crlf); i >= 0 {
		return i + 4
	}
	return len(r.raw)
}

// TargetOffset returns the byte offset of the request target
func (r *Request) TargetOffset() int {
	return len(r.Method()) + 1
}

// Body returns the request body
func (r *Request) Body() string {
	return r.raw[r.BodyOffset():]
}

// Headers returns the header lines in order as name/value pairs
func (r *Request) Headers() [][2]string {
	end := r.BodyOffset() - 4
	if end < 0 {
		end = 0
	}
	lines := strings.Split(r.raw[:end], crlf)
	var headers [][2]string
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers = append(headers, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return headers
}

// Header returns the first value of the named header (case-insensitive)
func (r *Request) Header(name string) string {
	for _, h := range r.Headers() {
		if strings.EqualFold(h[0], name) {
			return h[1]
		}
	}
	return ""
}

// ContentType classifies the body by its Content-Type header
func (r *Request) ContentType() ContentType {
	ct := strings.ToLower(r.Header("Content-Type"))
	switch {
	case ct == "":
		if r.Body() == "" {
			return ContentTypeNone
		}
		return ContentTypeUnknown
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		return ContentTypeURLEncoded
	case strings.Contains(ct, "json"):
		return ContentTypeJSON
	case strings.HasPrefix(ct, "multipart/"):
		return ContentTypeMultipart
	case strings.Contains(ct, "xml"):
		return ContentTypeXML
	default:
		return ContentTypeUnknown
	}
}

// WithBody returns a copy with the body replaced and Content-Length updated
func (r *Request) WithBody(body string) *Request {
	head := r.raw[:r.BodyOffset()-4]
	lines := strings.Split(head, crlf)

	found := false
	for i := 1; i < len(lines); i++ {
		name, _, ok := strings.Cut(lines[i], ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			lines[i] = "Content-Length: " + strconv.Itoa(len(body))
			found = true
		}
	}
	if !found && (body != "" || r.Method() == http.MethodPost || r.Method() == http.MethodPut || r.Method() == http.MethodPatch) {
		lines = append(lines, "Content-Length: "+strconv.Itoa(len(body)))
	}

	return r.WithRaw(strings.Join(lines, crlf) + crlf + crlf + body)
}

// WithPath returns a copy whose request target is replaced by path, which
// may carry a query string
func (r *Request) WithPath(path string) *Request {
	line := r.requestLine()
	newLine := r.Method() + " " + path + " " + r.version()
	return r.WithRaw(newLine + r.raw[len(line):])
}

// WithQuery returns a copy with the query string replaced
func (r *Request) WithQuery(query string) *Request {
	path := r.PathWithoutQuery()
	if query != "" {
		path += "?" + query
	}
	return r.WithPath(path)
}

// hopHeaders are recomputed by net/http and must not be copied verbatim
var hopHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"connection":        true,
	"transfer-encoding": true,
}

// ToHTTP converts the request into a net/http request
func (r *Request) ToHTTP(ctx context.Context) (*http.Request, error) {
	body := r.Body()

	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequestWithContext(ctx, r.Method(), r.URL(), strings.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, r.Method(), r.URL(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	for _, h := range r.Headers() {
		if hopHeaders[strings.ToLower(h[0])] {
			if strings.EqualFold(h[0], "Host") {
				req.Host = h[1]
			}
			continue
		}
		req.Header.Add(h[0], h[1])
	}

	return req, nil
}
