package httpmsg

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrParameterNotFound is returned when a named parameter is absent
var ErrParameterNotFound = errors.New("parameter not found")

// ErrMalformedJSON is returned when a JSON body cannot be tokenized
var ErrMalformedJSON = errors.New("malformed JSON body")

// ParamType identifies where a parameter lives in a request
type ParamType int

const (
	ParamURL ParamType = iota
	ParamBody
	ParamJSON
	ParamCookie
)

func (p ParamType) String() string {
	switch p {
	case ParamURL:
		return "url"
	case ParamBody:
		return "body"
	case ParamJSON:
		return "json"
	case ParamCookie:
		return "cookie"
	default:
		return "unknown"
	}
}

// FormParam is one name=value pair of a query string or urlencoded body.
// Offsets are relative to the string that was parsed.
type FormParam struct {
	Name       string
	Value      string
	NameStart  int
	NameEnd    int
	ValueStart int
	ValueEnd   int
}

// ParseForm splits an urlencoded string into its pairs, keeping offsets
func ParseForm(s string) []FormParam {
	var params []FormParam
	offset := 0
	for _, pair := range strings.Split(s, "&") {
		start := offset
		offset += len(pair) + 1
		if pair == "" {
			continue
		}

		p := FormParam{NameStart: start}
		rawName, rawValue, hasValue := strings.Cut(pair, "=")
		p.NameEnd = start + len(rawName)
		p.ValueStart = p.NameEnd
		if hasValue {
			p.ValueStart++
		}
		p.ValueEnd = p.ValueStart + len(rawValue)
		p.Name = unescape(rawName)
		p.Value = unescape(rawValue)
		params = append(params, p)
	}
	return params
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// removeFormParam drops the first pair named name together with one
// adjoining '&'
func removeFormParam(s, name string) (string, bool) {
	for _, p := range ParseForm(s) {
		if p.Name != name {
			continue
		}
		start, end := p.NameStart, p.ValueEnd
		if end < len(s) && s[end] == '&' {
			end++
		} else if start > 0 && s[start-1] == '&' {
			start--
		}
		return s[:start] + s[end:], true
	}
	return s, false
}

// JSONMember is a value found while scanning a JSON document. Array
// elements inherit the name of the member holding the array and have
// NameStart set to -1.
type JSONMember struct {
	Name       string
	NameStart  int
	ValueStart int
	ValueEnd   int
	Kind       byte // one of " 0 t f n { [
	Value      string
}

// IsScalar reports whether the member value is not an object or array
func (m JSONMember) IsScalar() bool {
	return m.Kind != '{' && m.Kind != '['
}

// ScanJSON tokenizes body and returns every member and array element, with
// byte offsets, ordered by position. String values are decoded; other
// scalars keep their literal text.
func ScanJSON(body string) ([]JSONMember, error) {
	type frame struct {
		kind       byte
		expectName bool
		name       string
		nameStart  int
		member     *JSONMember
	}

	dec := jsontext.NewDecoder(strings.NewReader(body),
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true))
	var members []JSONMember
	var stack []*frame

	for {
		prev := int(dec.InputOffset())
		kind := byte(dec.PeekKind())
		if kind == 0 {
			if _, err := dec.ReadToken(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
			continue
		}

		var top *frame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}

		if top != nil && top.kind == '{' && top.expectName && kind == '"' {
			tok, err := dec.ReadToken()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
			top.name = tok.String()
			top.nameStart = skipSeparators(body, prev)
			top.expectName = false
			continue
		}

		start := skipSeparators(body, prev)
		m := JSONMember{Kind: kind, ValueStart: start, NameStart: -1}
		if top != nil {
			m.Name = top.name
			if top.kind == '{' {
				m.NameStart = top.nameStart
			}
		}

		switch kind {
		case '{', '[':
			if _, err := dec.ReadToken(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
			f := &frame{kind: kind, expectName: kind == '{'}
			if top != nil {
				f.member = &m
				if kind == '[' {
					f.name = m.Name
				}
			}
			stack = append(stack, f)
			continue

		case '}', ']':
			if _, err := dec.ReadToken(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closed.member != nil {
				closed.member.ValueEnd = int(dec.InputOffset())
				members = append(members, *closed.member)
			}
			if len(stack) > 0 && stack[len(stack)-1].kind == '{' {
				stack[len(stack)-1].expectName = true
			}
			continue
		}

		raw, err := dec.ReadValue()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		m.ValueEnd = int(dec.InputOffset())
		m.ValueStart = m.ValueEnd - len(raw)
		if kind == '"' {
			if err := json.Unmarshal(raw, &m.Value, jsontext.AllowInvalidUTF8(true)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
			}
		} else {
			m.Value = string(raw)
		}
		members = append(members, m)

		if top != nil && top.kind == '{' {
			top.expectName = true
		}
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].ValueStart < members[j].ValueStart
	})
	return members, nil
}

// skipSeparators advances past whitespace and the ',' / ':' delimiters
func skipSeparators(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\r', '\n', ',', ':':
			i++
		default:
			return i
		}
	}
	return i
}

// removeJSONMember drops the first object member named name, in document
// order, together with one adjoining comma
func removeJSONMember(body, name string) (string, bool, error) {
	members, err := ScanJSON(body)
	if err != nil {
		return body, false, err
	}

	var target *JSONMember
	for i := range members {
		m := &members[i]
		if m.NameStart < 0 || m.Name != name {
			continue
		}
		if target == nil || m.NameStart < target.NameStart {
			target = m
		}
	}
	if target == nil {
		return body, false, nil
	}

	start, end := target.NameStart, target.ValueEnd
	j := end
	for j < len(body) && isSpace(body[j]) {
		j++
	}
	if j < len(body) && body[j] == ',' {
		end = j + 1
	} else {
		k := start - 1
		for k >= 0 && isSpace(body[k]) {
			k--
		}
		if k >= 0 && body[k] == ',' {
			start = k
		}
	}

	return body[:start] + body[end:], true, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// WithRemovedParameter returns a copy of the request without the first
// parameter of the given type and name
func (r *Request) WithRemovedParameter(name string, t ParamType) (*Request, error) {
	switch t {
	case ParamURL:
		query, ok := removeFormParam(r.Query(), name)
		if !ok {
			return nil, fmt.Errorf("%w: %s parameter %q", ErrParameterNotFound, t, name)
		}
		return r.WithQuery(query), nil

	case ParamBody:
		body, ok := removeFormParam(r.Body(), name)
		if !ok {
			return nil, fmt.Errorf("%w: %s parameter %q", ErrParameterNotFound, t, name)
		}
		return r.WithBody(body), nil

	case ParamJSON:
		body, ok, err := removeJSONMember(r.Body(), name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s parameter %q", ErrParameterNotFound, t, name)
		}
		return r.WithBody(body), nil

	default:
		return nil, fmt.Errorf("removing %s parameters is not supported", t)
	}
}

// Cookies returns the request cookies with offsets into the raw request
func (r *Request) Cookies() []FormParam {
	head := r.raw[:r.BodyOffset()]
	lower := strings.ToLower(head)

	var cookies []FormParam
	idx := strings.Index(lower, "\r\ncookie:")
	if idx < 0 {
		return nil
	}
	lineStart := idx + len("\r\ncookie:")
	lineEnd := strings.Index(head[lineStart:], crlf) + lineStart

	offset := lineStart
	for _, part := range strings.Split(head[lineStart:lineEnd], ";") {
		partStart := offset
		offset += len(part) + 1

		trimmed := strings.TrimLeft(part, " ")
		partStart += len(part) - len(trimmed)
		trimmed = strings.TrimRight(trimmed, " ")
		if trimmed == "" {
			continue
		}

		name, value, _ := strings.Cut(trimmed, "=")
		c := FormParam{Name: name, Value: value, NameStart: partStart, NameEnd: partStart + len(name)}
		c.ValueStart = c.NameEnd
		if strings.Contains(trimmed, "=") {
			c.ValueStart++
		}
		c.ValueEnd = c.ValueStart + len(value)
		cookies = append(cookies, c)
	}
	return cookies
}
