package parser

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/su1ph3r/typeconfusion/internal/httpmsg"
	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// BurpParser parses Burp Suite XML exports ("Save items")
type BurpParser struct {
	filePath string
	baseURL  string
}

// BurpExport represents a Burp Suite XML export
type BurpExport struct {
	XMLName xml.Name   `xml:"items"`
	Items   []BurpItem `xml:"item"`
}

// BurpItem represents a single request/response
type BurpItem struct {
	Time     string      `xml:"time"`
	URL      string      `xml:"url"`
	Host     string      `xml:"host"`
	Port     string      `xml:"port"`
	Protocol string      `xml:"protocol"`
	Method   string      `xml:"method"`
	Path     string      `xml:"path"`
	Request  BurpMessage `xml:"request"`
	Status   string      `xml:"status"`
	Response BurpMessage `xml:"response"`
	Comment  string      `xml:"comment"`
}

// BurpMessage is a request or response, optionally base64 encoded
type BurpMessage struct {
	Base64 bool   `xml:"base64,attr"`
	Value  string `xml:",chardata"`
}

// Decode returns the raw message bytes
func (m BurpMessage) Decode() ([]byte, error) {
	if !m.Base64 {
		return []byte(m.Value), nil
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(m.Value))
}

// NewBurpParser creates a new Burp parser
func NewBurpParser(filePath, baseURL string) *BurpParser {
	return &BurpParser{
		filePath: filePath,
		baseURL:  baseURL,
	}
}

// Type returns the input type
func (p *BurpParser) Type() types.InputType {
	return types.InputTypeBurp
}

// Parse parses the Burp export. The recorded response, when present,
// becomes the base response.
func (p *BurpParser) Parse() ([]httpmsg.RequestResponse, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var export BurpExport
	if err := xml.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	override, hasOverride, err := serviceOverride(p.baseURL)
	if err != nil {
		return nil, err
	}

	var targets []httpmsg.RequestResponse
	for i, item := range export.Items {
		svc := override
		if !hasOverride {
			svc = itemService(item)
		}

		target, err := p.parseItem(item, svc)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%s): %v", ErrParseFailed, i+1, item.URL, err)
		}
		targets = append(targets, target)
	}

	return Deduplicate(targets), nil
}

func (p *BurpParser) parseItem(item BurpItem, svc httpmsg.Service) (httpmsg.RequestResponse, error) {
	rawReq, err := item.Request.Decode()
	if err != nil {
		return httpmsg.RequestResponse{}, fmt.Errorf("decoding request: %w", err)
	}
	req, err := httpmsg.ParseRequest(rawReq, svc)
	if err != nil {
		return httpmsg.RequestResponse{}, err
	}

	target := httpmsg.RequestResponse{Request: req}

	rawResp, err := item.Response.Decode()
	if err != nil {
		return httpmsg.RequestResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(rawResp) > 0 {
		resp, err := httpmsg.ParseResponse(rawResp)
		if err != nil {
			return httpmsg.RequestResponse{}, err
		}
		target.Response = resp
	}

	return target, nil
}

func itemService(item BurpItem) httpmsg.Service {
	svc := httpmsg.Service{
		Scheme: strings.ToLower(item.Protocol),
		Host:   strings.TrimSpace(item.Host),
	}
	if svc.Scheme == "" {
		svc.Scheme = "http"
	}
	svc.Port, _ = strconv.Atoi(strings.TrimSpace(item.Port))
	if svc.Port == 0 {
		if svc.Scheme == "https" {
			svc.Port = 443
		} else {
			svc.Port = 80
		}
	}
	return svc
}
