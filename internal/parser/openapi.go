package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-json-experiment/json"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// OpenAPIParser builds base requests from the examples and defaults of an
// OpenAPI/Swagger document
type OpenAPIParser struct {
	filePath string
	baseURL  string
}

// NewOpenAPIParser creates a new OpenAPI parser
func NewOpenAPIParser(filePath, baseURL string) *OpenAPIParser {
	return &OpenAPIParser{
		filePath: filePath,
		baseURL:  baseURL,
	}
}

// Type returns the input type
func (p *OpenAPIParser) Type() types.InputType {
	return types.InputTypeOpenAPI
}

// Parse returns one request per operation, in path then method order.
// Query and header parameters with an example or default are filled in;
// path parameters fall back to "1". A JSON or urlencoded body is built
// from the media example or, failing that, from property examples.
func (p *OpenAPIParser) Parse() ([]httpmsg.RequestResponse, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	baseURL := p.baseURL
	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: no servers in document and no base URL given", ErrInvalidInput)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if doc.Paths == nil {
		return nil, nil
	}
	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var targets []httpmsg.RequestResponse
	for _, path := range paths {
		item := pathMap[path]
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		sort.Strings(methods)

		for _, method := range methods {
			req, err := p.buildRequest(baseURL, path, method, ops[method], item.Parameters)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrParseFailed, method, path, err)
			}
			targets = append(targets, httpmsg.RequestResponse{Request: req})
		}
	}

	return targets, nil
}

func (p *OpenAPIParser) buildRequest(baseURL, path, method string, op *openapi3.Operation, shared openapi3.Parameters) (*httpmsg.Request, error) {
	// Operation parameters override path-level ones with the same name
	params := make(map[string]*openapi3.Parameter)
	var order []string
	for _, list := range []openapi3.Parameters{shared, op.Parameters} {
		for _, ref := range list {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if _, ok := params[key]; !ok {
				order = append(order, key)
			}
			params[key] = ref.Value
		}
	}

	query := url.Values{}
	var queryNames []string
	headers := make(map[string]string)

	for _, key := range order {
		param := params[key]
		value, ok := parameterExample(param)

		switch param.In {
		case openapi3.ParameterInPath:
			if !ok {
				value = "1"
			}
			path = strings.ReplaceAll(path, "{"+param.Name+"}", url.PathEscape(formatValue(value)))
		case openapi3.ParameterInQuery:
			if ok {
				if _, seen := query[param.Name]; !seen {
					queryNames = append(queryNames, param.Name)
				}
				query.Add(param.Name, formatValue(value))
			}
		case openapi3.ParameterInHeader:
			if ok {
				headers[param.Name] = formatValue(value)
			}
		}
	}

	target := baseURL + path
	if len(queryNames) > 0 {
		// Keep declaration order rather than url.Values' sorted order
		parts := make([]string, 0, len(queryNames))
		for _, name := range queryNames {
			for _, v := range query[name] {
				parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(v))
			}
		}
		target += "?" + strings.Join(parts, "&")
	}

	body := ""
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		contentType, text, err := requestBodyExample(op.RequestBody.Value)
		if err != nil {
			return nil, err
		}
		if text != "" {
			headers["Content-Type"] = contentType
			body = text
		}
	}

	return httpmsg.NewRequest(method, target, headers, body)
}

// parameterExample returns the first example, default or enum value
// declared for param
func parameterExample(param *openapi3.Parameter) (any, bool) {
	if param.Example != nil {
		return param.Example, true
	}
	if v, ok := firstExample(param.Examples); ok {
		return v, true
	}
	if param.Schema != nil && param.Schema.Value != nil {
		return schemaExample(param.Schema.Value, 0)
	}
	return nil, false
}

func firstExample(examples openapi3.Examples) (any, bool) {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ref := examples[name]; ref != nil && ref.Value != nil && ref.Value.Value != nil {
			return ref.Value.Value, true
		}
	}
	return nil, false
}

// maxSchemaDepth bounds recursion through self-referencing schemas
const maxSchemaDepth = 8

// schemaExample derives a value from a schema's example, default or first
// enum member. Objects are assembled from their properties.
func schemaExample(schema *openapi3.Schema, depth int) (any, bool) {
	if schema.Example != nil {
		return schema.Example, true
	}
	if schema.Default != nil {
		return schema.Default, true
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0], true
	}
	if depth >= maxSchemaDepth || len(schema.Properties) == 0 {
		return nil, false
	}

	obj := make(map[string]any)
	for name, ref := range schema.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		if v, ok := schemaExample(ref.Value, depth+1); ok {
			obj[name] = v
		}
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// requestBodyExample renders a JSON or urlencoded example body. Other media
// types yield no body.
func requestBodyExample(body *openapi3.RequestBody) (string, string, error) {
	for _, ct := range []string{"application/json", "application/x-www-form-urlencoded"} {
		media := body.Content.Get(ct)
		if media == nil {
			continue
		}

		value, ok := media.Example, media.Example != nil
		if !ok {
			value, ok = firstExample(media.Examples)
		}
		if !ok && media.Schema != nil && media.Schema.Value != nil {
			value, ok = schemaExample(media.Schema.Value, 0)
		}
		if !ok {
			continue
		}

		if ct == "application/json" {
			b, err := json.Marshal(value, json.Deterministic(true))
			if err != nil {
				return "", "", fmt.Errorf("encoding body example: %w", err)
			}
			return ct, string(b), nil
		}

		obj, isObj := value.(map[string]any)
		if !isObj {
			continue
		}
		form := url.Values{}
		for name, v := range obj {
			form.Set(name, formatValue(v))
		}
		return ct, form.Encode(), nil
	}
	return "", "", nil
}

// formatValue renders an example value as it would appear in a query
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val, json.Deterministic(true))
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
