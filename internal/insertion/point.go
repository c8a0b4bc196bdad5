// Package insertion locates the mutable positions of a request and builds
// requests with a payload substituted at one of them.
package insertion

import (
	"fmt"
	"net/url"

	"github.com/go-json-experiment/json"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Kind classifies an insertion point by where its value lives
type Kind int

const (
	ParamURL Kind = iota
	ParamBody
	ParamCookie
	ParamXML
	ParamXMLAttr
	ParamMultipartAttr
	ParamJSON
	ParamAMF
	Header
	ParamNameURL
	ParamNameBody
	EntireBody
	URLPathFilename
	URLPathFolder
	UserProvided
	ExtensionProvided
	Unknown
)

var kindNames = map[Kind]string{
	ParamURL:           "PARAM_URL",
	ParamBody:          "PARAM_BODY",
	ParamCookie:        "PARAM_COOKIE",
	ParamXML:           "PARAM_XML",
	ParamXMLAttr:       "PARAM_XML_ATTR",
	ParamMultipartAttr: "PARAM_MULTIPART_ATTR",
	ParamJSON:          "PARAM_JSON",
	ParamAMF:           "PARAM_AMF",
	Header:             "HEADER",
	ParamNameURL:       "PARAM_NAME_URL",
	ParamNameBody:      "PARAM_NAME_BODY",
	EntireBody:         "ENTIRE_BODY",
	URLPathFilename:    "URL_PATH_FILENAME",
	URLPathFolder:      "URL_PATH_FOLDER",
	UserProvided:       "USER_PROVIDED",
	ExtensionProvided:  "EXTENSION_PROVIDED",
	Unknown:            "UNKNOWN",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Point is a named position in a base request whose value can be replaced
type Point interface {
	Name() string
	Kind() Kind
	BaseValue() string

	// BuildRequestWithPayload returns a new request with payload placed at
	// the point. The base request is left untouched.
	BuildRequestWithPayload(payload []byte) (*httpmsg.Request, error)

	// Highlight returns where payload lands in the request built from it
	Highlight(payload []byte) types.Marker
}

// Param is a Point backed by a byte range of the raw base request
type Param struct {
	name      string
	kind      Kind
	baseValue string
	base      *httpmsg.Request
	start     int
	end       int
}

// NewParam creates a point that replaces raw[start:end] of base
func NewParam(base *httpmsg.Request, kind Kind, name, baseValue string, start, end int) *Param {
	return &Param{
		name:      name,
		kind:      kind,
		baseValue: baseValue,
		base:      base,
		start:     start,
		end:       end,
	}
}

func (p *Param) Name() string      { return p.name }
func (p *Param) Kind() Kind        { return p.kind }
func (p *Param) BaseValue() string { return p.baseValue }

// Request returns the base request the point belongs to
func (p *Param) Request() *httpmsg.Request { return p.base }

// BuildRequestWithPayload implements Point
func (p *Param) BuildRequestWithPayload(payload []byte) (*httpmsg.Request, error) {
	req, _, err := p.build(payload)
	return req, err
}

// Highlight implements Point. The range covers len(payload) bytes starting
// where the payload text begins, after any opening quote.
//
// Offsets come from the request built with the encoded payload. A caller
// that sends a differently rendered request (a raw form fragment, say) gets
// offsets that can be off by the width change of Content-Length. Highlights
// are advisory, so this is left as is for body and host points alike.
func (p *Param) Highlight(payload []byte) types.Marker {
	start := p.start
	if _, at, err := p.build(payload); err == nil {
		start = at
	}
	return types.Marker{Start: start, End: start + len(payload)}
}

func (p *Param) build(payload []byte) (*httpmsg.Request, int, error) {
	encoded, prefix, err := p.encode(payload)
	if err != nil {
		return nil, 0, err
	}

	raw := p.base.String()
	bodyOffset := p.base.BodyOffset()

	if p.start >= bodyOffset {
		body := raw[bodyOffset:p.start] + encoded + raw[p.end:]
		req := p.base.WithBody(body)
		return req, req.BodyOffset() + p.start - bodyOffset + prefix, nil
	}

	req := p.base.WithRaw(raw[:p.start] + encoded + raw[p.end:])
	return req, p.start + prefix, nil
}

// encode renders payload for the point's context and reports how many
// bytes precede the payload text in the rendering
func (p *Param) encode(payload []byte) (string, int, error) {
	switch p.kind {
	case ParamURL, ParamBody, ParamCookie, ParamNameURL, ParamNameBody:
		return url.QueryEscape(string(payload)), 0, nil
	case ParamJSON:
		b, err := json.Marshal(string(payload))
		if err != nil {
			return "", 0, fmt.Errorf("encoding JSON payload for %q: %w", p.name, err)
		}
		return string(b), 1, nil
	default:
		return string(payload), 0, nil
	}
}
