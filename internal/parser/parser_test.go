package parser

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const cartRequest = "POST /cart HTTP/1.1\nHost: shop.example:8080\nContent-Type: application/json\n\n{\"qty\":3}"

func TestDetectInputType(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    types.InputType
	}{
		{"har extension", "a.har", "{}", types.InputTypeHAR},
		{"burp xml", "a.xml", "<items burpVersion=\"2\"><item></item></items>", types.InputTypeBurp},
		{"other xml", "a.xml", "<root/>", types.InputTypeUnknown},
		{"http file", "a.http", cartRequest, types.InputTypeRequest},
		{"txt request", "a.txt", cartRequest, types.InputTypeRequest},
		{"txt urls", "a.txt", "GET https://x.example/a?id=1\n", types.InputTypeRaw},
		{"openapi json", "a.json", `{"openapi":"3.0.0"}`, types.InputTypeOpenAPI},
		{"har json", "a.json", `{"log":{"entries":[]}}`, types.InputTypeHAR},
		{"yaml", "a.yaml", "paths: {}", types.InputTypeOpenAPI},
		{"unknown", "a.bin", "", types.InputTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectInputType(writeFile(t, tt.file, tt.content)))
		})
	}
}

func TestNewParser_Errors(t *testing.T) {
	_, err := NewParser("", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewParser(filepath.Join(t.TempDir(), "missing.har"), "")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = NewParser(writeFile(t, "a.bin", "x"), "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRequestParser(t *testing.T) {
	path := writeFile(t, "cart.http", cartRequest)

	targets, err := NewRequestParser(path, "", "").Parse()
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Nil(t, targets[0].Response)

	req := targets[0].Request
	assert.Equal(t, httpmsg.Service{Scheme: "http", Host: "shop.example", Port: 8080}, req.Service())
	assert.Equal(t, `{"qty":3}`, req.Body())
	assert.Equal(t, httpmsg.ContentTypeJSON, req.ContentType())

	targets, err = NewRequestParser(path, "", "https").Parse()
	require.NoError(t, err)
	assert.Equal(t, httpmsg.Service{Scheme: "https", Host: "shop.example", Port: 8080}, targets[0].Request.Service())

	targets, err = NewRequestParser(path, "https://staging.example", "").Parse()
	require.NoError(t, err)
	assert.Equal(t, httpmsg.Service{Scheme: "https", Host: "staging.example", Port: 443}, targets[0].Request.Service())
}

func TestRequestParser_NoHost(t *testing.T) {
	path := writeFile(t, "a.http", "GET /x HTTP/1.1\n\n")

	_, err := NewRequestParser(path, "", "").Parse()
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestRawParser(t *testing.T) {
	path := writeFile(t, "urls.txt", "# targets\nGET https://a.example/item?id=5\n\npost /login?next=home\nhttps://a.example/\n")

	p, err := NewRawParserFromFile(path, "https://b.example/")
	require.NoError(t, err)
	targets, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, targets, 3)

	assert.Equal(t, "https://a.example/item?id=5", targets[0].Request.URL())
	assert.Equal(t, "POST", targets[1].Request.Method())
	assert.Equal(t, "https://b.example/login?next=home", targets[1].Request.URL())
	assert.Equal(t, "GET", targets[2].Request.Method())

	targets, err = NewRawParser("", []string{"/relative"}).Parse()
	require.NoError(t, err)
	assert.Empty(t, targets, "relative entries need a base URL")
}

func TestParseEndpointList(t *testing.T) {
	targets, err := ParseEndpointList("GET /a?x=1, /b?y=2 ,", "http://api.example")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "x=1", targets[0].Request.Query())
	assert.Equal(t, "http://api.example/b?y=2", targets[1].Request.URL())
}

func TestBurpParser(t *testing.T) {
	req := base64.StdEncoding.EncodeToString([]byte("GET /item?id=5 HTTP/1.1\r\nHost: shop.example\r\n\r\n"))
	resp := base64.StdEncoding.EncodeToString([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<p>item 5</p>"))

	export := `<?xml version="1.0"?>
<items burpVersion="2023.1">
  <item>
    <url><![CDATA[https://shop.example:8443/item?id=5]]></url>
    <host ip="10.0.0.1">shop.example</host>
    <port>8443</port>
    <protocol>https</protocol>
    <method>GET</method>
    <request base64="true">` + req + `</request>
    <status>200</status>
    <response base64="true">` + resp + `</response>
  </item>
  <item>
    <host>shop.example</host>
    <port>8443</port>
    <protocol>https</protocol>
    <request base64="true">` + req + `</request>
    <response base64="true"></response>
  </item>
  <item>
    <host>plain.example</host>
    <port>80</port>
    <protocol>http</protocol>
    <request base64="false"><![CDATA[POST /f HTTP/1.1
Host: plain.example
Content-Type: application/x-www-form-urlencoded

a=1]]></request>
  </item>
</items>`

	targets, err := NewBurpParser(writeFile(t, "export.xml", export), "").Parse()
	require.NoError(t, err)
	require.Len(t, targets, 2, "identical requests to the same service are merged")

	first := targets[0]
	assert.Equal(t, httpmsg.Service{Scheme: "https", Host: "shop.example", Port: 8443}, first.Request.Service())
	require.NotNil(t, first.Response)
	assert.Equal(t, 200, first.Response.StatusCode)
	assert.Equal(t, "<p>item 5</p>", string(first.Response.Body))

	second := targets[1]
	assert.Nil(t, second.Response)
	assert.Equal(t, "a=1", second.Request.Body())
	assert.Equal(t, httpmsg.ContentTypeURLEncoded, second.Request.ContentType())
}

func TestBurpParser_Invalid(t *testing.T) {
	_, err := NewBurpParser(writeFile(t, "bad.xml", "<items><item>"), "").Parse()
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestHARParser(t *testing.T) {
	har := `{
  "log": {
    "version": "1.2",
    "creator": {"name": "browser", "version": "1"},
    "entries": [
      {
        "startedDateTime": "2024-01-01T00:00:00Z",
        "request": {
          "method": "post",
          "url": "https://shop.example/cart?src=web",
          "httpVersion": "HTTP/2",
          "headers": [
            {"name": ":authority", "value": "shop.example"},
            {"name": "Content-Length", "value": "9"},
            {"name": "X-Requested-With", "value": "fetch"}
          ],
          "queryString": [{"name": "src", "value": "web"}],
          "cookies": [],
          "postData": {"mimeType": "application/json", "text": "{\"qty\":3}"}
        },
        "response": {
          "status": 201,
          "statusText": "Created",
          "headers": [{"name": "Content-Type", "value": "application/json"}],
          "content": {"size": 11, "mimeType": "application/json", "text": "eyJvayI6dHJ1ZX0=", "encoding": "base64"}
        },
        "timings": {"send": 1, "wait": 2, "receive": 3}
      },
      {
        "request": {"method": "GET", "url": "https://shop.example/blocked", "headers": []},
        "response": {"status": 0, "headers": [], "content": {"size": 0}}
      }
    ]
  }
}`

	targets, err := NewHARParser(writeFile(t, "traffic.har", har), "").Parse()
	require.NoError(t, err)
	require.Len(t, targets, 2)

	req := targets[0].Request
	assert.Equal(t, "POST", req.Method())
	assert.Equal(t, "https://shop.example/cart?src=web", req.URL())
	assert.Equal(t, "application/json", req.Header("Content-Type"))
	assert.Equal(t, "fetch", req.Header("X-Requested-With"))
	assert.Equal(t, "9", req.Header("Content-Length"))
	assert.NotContains(t, req.String(), ":authority")

	resp := targets[0].Response
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))

	assert.Nil(t, targets[1].Response)
}

func TestHARParser_BaseURLOverride(t *testing.T) {
	har := `{"log":{"entries":[{"request":{"method":"GET","url":"https://prod.example/a?id=1","headers":[]},"response":{"status":200,"headers":[],"content":{"size":0}}}]}}`

	targets, err := NewHARParser(writeFile(t, "a.har", har), "http://localhost:8080").Parse()
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "http://localhost:8080/a?id=1", targets[0].Request.URL())
}

func TestOpenAPIParser(t *testing.T) {
	doc := `openapi: 3.0.3
info:
  title: shop
  version: "1"
servers:
  - url: https://api.shop.example/v1
paths:
  /items/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: integer
    get:
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            example: 10
        - name: sort
          in: query
          schema:
            type: string
            enum: [asc, desc]
        - name: cursor
          in: query
          schema:
            type: string
        - name: X-Tenant
          in: header
          example: acme
      responses:
        "200":
          description: ok
  /cart:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                qty:
                  type: integer
                  example: 3
                sku:
                  type: string
                  example: A-1
                note:
                  type: string
      responses:
        "201":
          description: created
  /login:
    post:
      requestBody:
        content:
          application/x-www-form-urlencoded:
            example:
              user: bob
              pin: 42
      responses:
        "200":
          description: ok
`

	targets, err := NewOpenAPIParser(writeFile(t, "shop.yaml", doc), "").Parse()
	require.NoError(t, err)
	require.Len(t, targets, 3)

	cart := targets[0].Request
	assert.Equal(t, "POST", cart.Method())
	assert.Equal(t, "https://api.shop.example/v1/cart", cart.URL())
	assert.Equal(t, `{"qty":3,"sku":"A-1"}`, cart.Body())
	assert.Equal(t, httpmsg.ContentTypeJSON, cart.ContentType())

	item := targets[1].Request
	assert.Equal(t, "GET", item.Method())
	assert.Equal(t, "/v1/items/1?limit=10&sort=asc", item.Path())
	assert.Equal(t, "acme", item.Header("X-Tenant"))

	login := targets[2].Request
	assert.Equal(t, "pin=42&user=bob", login.Body())
	assert.Equal(t, httpmsg.ContentTypeURLEncoded, login.ContentType())
}

func TestOpenAPIParser_NoServer(t *testing.T) {
	doc := "openapi: 3.0.3\ninfo:\n  title: x\n  version: \"1\"\npaths: {}\n"

	_, err := NewOpenAPIParser(writeFile(t, "x.yaml", doc), "").Parse()
	assert.ErrorIs(t, err, ErrInvalidInput)

	targets, err := NewOpenAPIParser(writeFile(t, "x.yaml", doc), "http://localhost").Parse()
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestParseMultiple_Deduplicates(t *testing.T) {
	a := writeFile(t, "a.http", cartRequest)
	b := writeFile(t, "b.http", cartRequest)

	targets, err := ParseMultiple([]string{a, b}, "")
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}
