package httpmsg

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *Request {
	t.Helper()
	req, err := ParseRequest([]byte(raw), Service{})
	require.NoError(t, err)
	return req
}

func TestParseRequest_NormalizesHeaderLineEndings(t *testing.T) {
	req := mustParse(t, "GET /item?id=5 HTTP/1.1\nHost: shop.example\nAccept: */*\n\n")

	assert.Equal(t, "GET /item?id=5 HTTP/1.1\r\nHost: shop.example\r\nAccept: */*\r\n\r\n", req.String())
	assert.Equal(t, "GET", req.Method())
	assert.Equal(t, "/item?id=5", req.Path())
	assert.Equal(t, "/item", req.PathWithoutQuery())
	assert.Equal(t, "id=5", req.Query())
	assert.Equal(t, "http://shop.example/item?id=5", req.URL())
	assert.Equal(t, "*/*", req.Header("accept"))
}

func TestParseRequest_ServiceFromAbsoluteTarget(t *testing.T) {
	req := mustParse(t, "GET https://api.example:8443/v1/users?page=2 HTTP/1.1\r\n\r\n")

	assert.Equal(t, Service{Scheme: "https", Host: "api.example", Port: 8443}, req.Service())
	assert.Equal(t, "/v1/users?page=2", req.Path())
	assert.Equal(t, "https://api.example:8443/v1/users?page=2", req.URL())
}

func TestParseRequest_Malformed(t *testing.T) {
	_, err := ParseRequest([]byte("\r\n\r\n"), Service{})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = ParseRequest([]byte("GET / HTTP/1.1\r\nnot a header\r\n\r\n"), Service{})
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		header string
		body   string
		want   ContentType
	}{
		{"", "", ContentTypeNone},
		{"application/json; charset=utf-8", "{}", ContentTypeJSON},
		{"application/vnd.api+json", "{}", ContentTypeJSON},
		{"application/x-www-form-urlencoded", "a=1", ContentTypeURLEncoded},
		{"multipart/form-data; boundary=x", "--x", ContentTypeMultipart},
		{"text/xml", "<a/>", ContentTypeXML},
		{"text/plain", "hi", ContentTypeUnknown},
		{"", "raw", ContentTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String()+"/"+tt.header, func(t *testing.T) {
			raw := "POST / HTTP/1.1\r\nHost: x\r\n"
			if tt.header != "" {
				raw += "Content-Type: " + tt.header + "\r\n"
			}
			raw += "\r\n" + tt.body
			assert.Equal(t, tt.want, mustParse(t, raw).ContentType())
		})
	}
}

func TestWithBody_UpdatesContentLength(t *testing.T) {
	req := mustParse(t, "POST /login HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\n\r\na=1")

	updated := req.WithBody("a=1&b=22")

	assert.Equal(t, "POST /login HTTP/1.1\r\nHost: x\r\nContent-Length: 8\r\n\r\na=1&b=22", updated.String())
	assert.Equal(t, "a=1", req.Body(), "original request must not change")
}

func TestWithBody_AddsContentLength(t *testing.T) {
	req := mustParse(t, "POST /login HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "8", req.WithBody("a=1&b=22").Header("Content-Length"))
}

func TestWithQuery(t *testing.T) {
	req := mustParse(t, "GET /item?id=5&x=1 HTTP/1.1\r\nHost: x\r\n\r\n")

	assert.Equal(t, "GET /item?id=5&id=51&x=1 HTTP/1.1\r\nHost: x\r\n\r\n", req.WithQuery("id=5&id=51&x=1").String())
	assert.Equal(t, "GET /item HTTP/1.1\r\nHost: x\r\n\r\n", req.WithQuery("").String())
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("post", "http://api.example/orders?dry=1", map[string]string{
		"Content-Type": "application/json",
	}, `{"qty":3}`)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method())
	assert.Equal(t, "/orders?dry=1", req.Path())
	assert.Equal(t, "api.example", req.Header("Host"))
	assert.Equal(t, "9", req.Header("Content-Length"))
	assert.Equal(t, ContentTypeJSON, req.ContentType())

	_, err = NewRequest("GET", "/relative", nil, "")
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestToHTTP(t *testing.T) {
	req := mustParse(t, "POST /api?x=1 HTTP/1.1\r\nHost: api.example\r\nContent-Type: application/json\r\nContent-Length: 99\r\nX-Trace: abc\r\n\r\n{\"a\":1}")

	httpReq, err := req.ToHTTP(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "POST", httpReq.Method)
	assert.Equal(t, "http://api.example/api?x=1", httpReq.URL.String())
	assert.Equal(t, "api.example", httpReq.Host)
	assert.Equal(t, "abc", httpReq.Header.Get("X-Trace"))
	assert.Empty(t, httpReq.Header.Get("Content-Length"))

	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte("HTTP/1.1 404 Not Found\r\nContent-Type: text/html\r\nContent-Length: 2\r\n\r\nnope"))
	require.NoError(t, err)

	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Not Found", resp.Status)
	assert.Equal(t, "text/html", resp.Headers.Get("Content-Type"))
	assert.Equal(t, 4, resp.BodyLength(), "recorded body is kept even when Content-Length disagrees")

	_, err = ParseResponse([]byte("garbage"))
	assert.Error(t, err)
}
