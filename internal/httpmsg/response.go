package httpmsg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is a received (or recorded) HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// NewResponse builds a response from a status code and body
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Headers:    make(http.Header),
		Body:       body,
	}
}

// BodyLength returns the body length in bytes
func (r *Response) BodyLength() int {
	return len(r.Body)
}

// ParseResponse parses raw response text such as the one stored in a Burp
// export. A missing or truncated body is tolerated.
func ParseResponse(raw []byte) (*Response, error) {
	// Split manually so that a Content-Length mismatch in recorded traffic
	// does not truncate the body
	head, body := raw, []byte(nil)
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		head, body = raw[:i], raw[i+4:]
	} else if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		head, body = raw[:i], raw[i+2:]
	}

	reader := bufio.NewReader(bytes.NewReader(head))
	statusLine, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	statusLine = strings.TrimRight(statusLine, "\r\n")

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, fmt.Errorf("%w: bad status line %q", ErrMalformedRequest, statusLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad status code %q", ErrMalformedRequest, parts[1])
	}

	resp := NewResponse(code, body)
	if len(parts) == 3 {
		resp.Status = parts[2]
	}

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if name, value, ok := strings.Cut(line, ":"); ok {
			resp.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		}
		if err != nil {
			break
		}
	}

	return resp, nil
}

// ReadResponse converts a net/http response, reading at most limit body
// bytes and closing the body
func ReadResponse(resp *http.Response, limit int64) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		Body:       body,
	}, nil
}

// RequestResponse is a base request paired with the response it produced
type RequestResponse struct {
	Request  *Request
	Response *Response
}
